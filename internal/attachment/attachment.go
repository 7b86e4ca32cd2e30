package attachment

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rx3lixir/bookclub/pkg/apperr"
)

const (
	MaxFilenameLen = 128
	defaultExpiry  = 15 * time.Minute
)

var ErrInvalidFilename = apperr.Invalid("INVALID_ATTACHMENT", "filename is empty or too long")

// ObjectStore is the part of *minio.Client used for presigning
type ObjectStore interface {
	PresignedPutObject(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

var _ ObjectStore = (*minio.Client)(nil)

// Upload is a presigned PUT the client uses to store a file before
// sending it as a FILE message with Key as content
type Upload struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	client     ObjectStore
	bucketName string
	expiry     time.Duration
	now        func() time.Time
}

func NewService(client ObjectStore, bucketName string, expiry time.Duration) *Service {
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	return &Service{
		client:     client,
		bucketName: bucketName,
		expiry:     expiry,
		now:        time.Now,
	}
}

func (s *Service) PresignUpload(ctx context.Context, roomID uuid.UUID, filename string) (*Upload, error) {
	name, err := cleanFilename(filename)
	if err != nil {
		return nil, err
	}

	key := KeyPrefix(roomID) + uuid.NewString() + "-" + name

	u, err := s.client.PresignedPutObject(ctx, s.bucketName, key, s.expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &Upload{
		Key:       key,
		URL:       u.String(),
		ExpiresAt: s.now().Add(s.expiry),
	}, nil
}

func (s *Service) PresignDownload(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return u.String(), nil
}

// KeyPrefix is the object prefix every attachment of a room lives under
func KeyPrefix(roomID uuid.UUID) string {
	return "rooms/" + roomID.String() + "/"
}

// BelongsTo reports whether key was issued for roomID
func BelongsTo(roomID uuid.UUID, key string) bool {
	rest, ok := strings.CutPrefix(key, KeyPrefix(roomID))
	return ok && rest != "" && !strings.Contains(rest, "/")
}

func cleanFilename(filename string) (string, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "", ErrInvalidFilename
	}
	if utf8.RuneCountInString(name) > MaxFilenameLen {
		return "", ErrInvalidFilename
	}

	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, name), nil
}
