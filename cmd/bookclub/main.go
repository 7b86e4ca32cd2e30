package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rx3lixir/bookclub/internal/attachment"
	"github.com/rx3lixir/bookclub/internal/auth"
	"github.com/rx3lixir/bookclub/internal/config"
	"github.com/rx3lixir/bookclub/internal/llm"
	"github.com/rx3lixir/bookclub/internal/message"
	"github.com/rx3lixir/bookclub/internal/quiz"
	"github.com/rx3lixir/bookclub/internal/room"
	"github.com/rx3lixir/bookclub/internal/server"
	"github.com/rx3lixir/bookclub/internal/session"
	"github.com/rx3lixir/bookclub/internal/storage/postgres"
	"github.com/rx3lixir/bookclub/internal/storage/s3"
	"github.com/rx3lixir/bookclub/internal/summary"
	"github.com/rx3lixir/bookclub/internal/vote"
	"github.com/rx3lixir/bookclub/internal/websocket"
	"github.com/rx3lixir/bookclub/pkg/logger"
)

func main() {
	// Initializing and validating config
	cm, err := config.NewConfigManager("internal/config/config.yaml")
	if err != nil {
		fmt.Printf("Error getting config file: %v\n", err)
		os.Exit(1)
	}
	c := cm.GetConfig()
	if err := c.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initializing logger
	log := logger.Must(logger.New(logger.Config{
		Env:       c.GeneralParams.Env,
		Level:     c.GeneralParams.LogLevel,
		AddSource: false,
	})).With("service", "bookclub")

	log.Info(
		"Config loaded successfully!",
		"env", c.GeneralParams.Env,
		"http_server_port", c.HttpServerParams.Port,
		"http_server_address", c.HttpServerParams.Address,
		"database", c.MainDBParams.Name,
		"summarizer", c.SummaryParams.Provider,
	)

	// Global context with cancel
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Creating database connection and init Postgres
	pool, err := postgres.NewPool(ctx, c.MainDBParams.GetDSN())
	if err != nil {
		log.Error(
			"Failed to create postgres pool",
			"error", err,
			"db", c.MainDBParams.Name,
		)
		os.Exit(1)
	}
	defer pool.Close()

	log.Info("Database connection established", "db", c.MainDBParams.Name)

	if c.MainDBParams.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Error("Failed to apply schema", "error", err)
			os.Exit(1)
		}
		log.Info("Database schema applied")
	}

	// Object storage for FILE messages
	minioClient, err := s3.Connect(ctx, s3.Config{
		Endpoint:        c.S3Params.Endpoint,
		AccessKeyID:     c.S3Params.AccessKeyID,
		SecretAccessKey: c.S3Params.SecretAccessKey,
		UseSSL:          c.S3Params.UseSSL,
		BucketName:      c.S3Params.BucketName,
	})
	if err != nil {
		log.Error("Failed to connect to object storage", "error", err, "endpoint", c.S3Params.Endpoint)
		os.Exit(1)
	}

	authService := auth.NewService(c.GeneralParams.SecretKey, 15*time.Minute)

	// Summaries run on their own pool, off the request path
	summarizer, err := llm.NewClient(llm.Config{
		Provider:  llm.ProviderKind(c.SummaryParams.Provider),
		BaseURL:   c.SummaryParams.BaseURL,
		APIKey:    c.SummaryParams.APIKey,
		Model:     c.SummaryParams.Model,
		MaxTokens: c.SummaryParams.MaxTokens,
		Timeout:   c.SummaryParams.RequestTimeout,
	}, log.Component("llm"))
	if err != nil {
		log.Error("Failed to create summarizer client", "error", err)
		os.Exit(1)
	}

	summaryPipeline := summary.NewPipeline(
		summary.NewPostgresStore(pool),
		summarizer,
		log.Component("summary"),
		summary.WithBudget(c.SummaryParams.TranscriptBudget),
	)
	dispatcher := summary.NewDispatcher(summaryPipeline, summary.DispatcherConfig{
		Workers:    c.SummaryParams.Workers,
		QueueSize:  c.SummaryParams.QueueSize,
		JobTimeout: c.SummaryParams.JobTimeout,
	}, log.Component("summary"))
	dispatcher.Start()

	// Live connections
	registry := session.NewRegistry()
	manager := websocket.NewManager(registry, log.Component("websocket"))

	// Domain services
	quizGate := quiz.NewGate(quiz.NewPostgresStore(pool))

	roomService := room.NewService(
		room.NewPostgresStore(pool),
		quizGate,
		manager,
		dispatcher,
		room.Limits{
			DefaultDurationMinutes: c.ChatParams.DefaultDurationMinutes,
			MaxDurationMinutes:     c.ChatParams.MaxDurationMinutes,
			DefaultRoundCount:      c.ChatParams.DefaultRoundCount,
			MaxRoundCount:          c.ChatParams.MaxRoundCount,
			VoteWindow:             c.ChatParams.VoteWindow,
		},
		log.Component("room"),
	)

	attachments := attachment.NewService(minioClient, c.S3Params.BucketName, c.S3Params.PresignExpiry)

	messages := message.NewPipeline(
		message.NewPostgresStore(pool),
		roomService,
		manager,
		log.Component("message"),
		message.WithPresigner(attachments),
	)

	votes := vote.NewEngine(vote.NewPostgresStore(pool), c.ChatParams.VoteWindow, log.Component("vote"))

	// HTTP surface
	timeout := c.ChatParams.RequestTimeout
	router := server.NewRouter(server.RouterConfig{
		RoomHandler:       room.NewHandler(roomService, log.Logger, timeout),
		QuizHandler:       quiz.NewHandler(quizGate, log.Logger, timeout),
		MessageHandler:    message.NewHandler(messages, log.Logger, timeout),
		AttachmentHandler: attachment.NewHandler(attachments, roomService, log.Logger, timeout),
		VoteHandler:       vote.NewHandler(votes, log.Logger, timeout),
		WebsocketHandler: websocket.NewHandler(
			manager,
			registry,
			authService,
			messages,
			roomService,
			websocket.Config{
				AllowedOrigins:  c.HttpServerParams.AllowedOrigins,
				SendBuffer:      c.WebsocketParams.SendBuffer,
				MinSendInterval: c.WebsocketParams.MinSendInterval,
				MaxFrameBytes:   c.WebsocketParams.MaxFrameBytes,
				RequestTimeout:  timeout,
			},
			log.Component("websocket"),
		),
		AuthService:    authService,
		AllowedOrigins: c.HttpServerParams.AllowedOrigins,
		Log:            log.Logger,
	})

	httpServer := server.New(c.HttpServerParams.GetAddress(), router, log.Logger)

	serverErrors := make(chan error, 1)

	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", "error", err)
		}
		manager.Shutdown()
		stopDispatcher(dispatcher, log)
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		log.Info("Shutting down HTTP server...")
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Error("Graceful shutdown failed", "error", err)
		}

		log.Info("Closing websocket hubs...", "rooms", manager.HubCount())
		manager.Shutdown()

		stopDispatcher(dispatcher, log)
	}
}

// stopDispatcher waits for in-flight summaries within the job timeout
func stopDispatcher(d *summary.Dispatcher, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Info("Draining summary jobs...")
	if err := d.Stop(ctx); err != nil {
		log.Error("Summary jobs did not finish", "error", err)
	}
}
