package logger

import (
	"fmt"
)

// Must panics if logger creation fails
// Useful for startup where errors are unrecoverable
func Must(logger *Logger, err error) *Logger {
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	return logger
}
