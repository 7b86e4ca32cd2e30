package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	GeneralParams    GeneralParams
	HttpServerParams HttpServerParams
	MainDBParams     MainDBParams
	S3Params         S3Params
	ChatParams       ChatParams
	SummaryParams    SummaryParams
	WebsocketParams  WebsocketParams
}

type GeneralParams struct {
	Env       string
	LogLevel  string
	SecretKey string
}

type HttpServerParams struct {
	Address        string
	Port           string
	AllowedOrigins []string
}

type MainDBParams struct {
	Username string
	Password string
	Name     string
	Port     int
	Host     string
	Timeout  int
	Migrate  bool
}

type S3Params struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	PresignExpiry   time.Duration
}

// ChatParams bounds room lifecycle values
type ChatParams struct {
	DefaultDurationMinutes int
	MaxDurationMinutes     int
	DefaultRoundCount      int
	MaxRoundCount          int
	VoteWindow             time.Duration
	RequestTimeout         time.Duration
}

type SummaryParams struct {
	Provider         string
	BaseURL          string
	APIKey           string
	Model            string
	MaxTokens        int
	RequestTimeout   time.Duration
	Workers          int
	QueueSize        int
	JobTimeout       time.Duration
	TranscriptBudget int
}

type WebsocketParams struct {
	SendBuffer      int
	MinSendInterval time.Duration
	MaxFrameBytes   int64
}

type ConfigManager struct {
	v      *viper.Viper
	config *Config
}

// NewConfigManager creates new config manager that handles
// all viper config options and loads a config from yaml
func NewConfigManager(configPath string) (*ConfigManager, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cm := &ConfigManager{v: v}

	if err := cm.loadConfig(); err != nil {
		return nil, err
	}

	return cm, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general_params.env", "dev")
	v.SetDefault("main_db_params.db_port", 5432)
	v.SetDefault("main_db_params.db_timeout", 5)
	v.SetDefault("main_db_params.migrate", true)
	v.SetDefault("s3_params.presign_expiry", "15m")

	v.SetDefault("chat_params.default_duration_minutes", 30)
	v.SetDefault("chat_params.max_duration_minutes", 180)
	v.SetDefault("chat_params.default_round_count", 3)
	v.SetDefault("chat_params.max_round_count", 10)
	v.SetDefault("chat_params.vote_window", "1m")
	v.SetDefault("chat_params.request_timeout", "5s")

	v.SetDefault("summary_params.provider", "openai")
	v.SetDefault("summary_params.max_tokens", 1024)
	v.SetDefault("summary_params.request_timeout", "60s")
	v.SetDefault("summary_params.workers", 4)
	v.SetDefault("summary_params.queue_size", 128)
	v.SetDefault("summary_params.job_timeout", "3m")
	v.SetDefault("summary_params.transcript_budget", 2400)

	v.SetDefault("websocket_params.send_buffer", 256)
	v.SetDefault("websocket_params.min_send_interval", "200ms")
	v.SetDefault("websocket_params.max_frame_bytes", 16384)
}

// Extracting data from yaml file and loading into Config
func (cm *ConfigManager) loadConfig() error {
	cm.config = &Config{
		GeneralParams: GeneralParams{
			Env:       cm.v.GetString("general_params.env"),
			LogLevel:  cm.v.GetString("general_params.log_level"),
			SecretKey: cm.v.GetString("general_params.secret_key"),
		},
		HttpServerParams: HttpServerParams{
			Address:        cm.v.GetString("http_server_params.http_server_address"),
			Port:           cm.v.GetString("http_server_params.http_server_port"),
			AllowedOrigins: cm.v.GetStringSlice("http_server_params.allowed_origins"),
		},
		MainDBParams: MainDBParams{
			Username: cm.v.GetString("main_db_params.db_username"),
			Password: cm.v.GetString("main_db_params.db_password"),
			Name:     cm.v.GetString("main_db_params.db_name"),
			Port:     cm.v.GetInt("main_db_params.db_port"),
			Host:     cm.v.GetString("main_db_params.db_host"),
			Timeout:  cm.v.GetInt("main_db_params.db_timeout"),
			Migrate:  cm.v.GetBool("main_db_params.migrate"),
		},
		S3Params: S3Params{
			Endpoint:        cm.v.GetString("s3_params.endpoint"),
			AccessKeyID:     cm.v.GetString("s3_params.access_key_id"),
			SecretAccessKey: cm.v.GetString("s3_params.secret_access_key"),
			UseSSL:          cm.v.GetBool("s3_params.use_ssl"),
			BucketName:      cm.v.GetString("s3_params.bucket_name"),
			PresignExpiry:   cm.v.GetDuration("s3_params.presign_expiry"),
		},
		ChatParams: ChatParams{
			DefaultDurationMinutes: cm.v.GetInt("chat_params.default_duration_minutes"),
			MaxDurationMinutes:     cm.v.GetInt("chat_params.max_duration_minutes"),
			DefaultRoundCount:      cm.v.GetInt("chat_params.default_round_count"),
			MaxRoundCount:          cm.v.GetInt("chat_params.max_round_count"),
			VoteWindow:             cm.v.GetDuration("chat_params.vote_window"),
			RequestTimeout:         cm.v.GetDuration("chat_params.request_timeout"),
		},
		SummaryParams: SummaryParams{
			Provider:         cm.v.GetString("summary_params.provider"),
			BaseURL:          cm.v.GetString("summary_params.base_url"),
			APIKey:           cm.v.GetString("summary_params.api_key"),
			Model:            cm.v.GetString("summary_params.model"),
			MaxTokens:        cm.v.GetInt("summary_params.max_tokens"),
			RequestTimeout:   cm.v.GetDuration("summary_params.request_timeout"),
			Workers:          cm.v.GetInt("summary_params.workers"),
			QueueSize:        cm.v.GetInt("summary_params.queue_size"),
			JobTimeout:       cm.v.GetDuration("summary_params.job_timeout"),
			TranscriptBudget: cm.v.GetInt("summary_params.transcript_budget"),
		},
		WebsocketParams: WebsocketParams{
			SendBuffer:      cm.v.GetInt("websocket_params.send_buffer"),
			MinSendInterval: cm.v.GetDuration("websocket_params.min_send_interval"),
			MaxFrameBytes:   cm.v.GetInt64("websocket_params.max_frame_bytes"),
		},
	}
	return nil
}

// Geting config instance
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

// Compiling a string to connect to main_db
func (db *MainDBParams) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?connect_timeout=%d&sslmode=disable",
		db.Username,
		db.Password,
		db.Host,
		db.Port,
		db.Name,
		db.Timeout,
	)
}

func (h *HttpServerParams) GetAddress() string {
	return fmt.Sprintf(
		"%s:%s",
		h.Address,
		h.Port,
	)
}

func (c *Config) Validate() error {
	// Checking secret key
	if c.GeneralParams.SecretKey == "" {
		return fmt.Errorf("parameter secret_key is required")
	}

	// Checking out enviroment variable
	switch c.GeneralParams.Env {
	case "dev", "prod", "test":
	default:
		return fmt.Errorf("env parameter is invalid: %s. try dev/prod/test instead", c.GeneralParams.Env)
	}

	// Checking http server parameters
	if c.HttpServerParams.Address == "" {
		return fmt.Errorf("http server address is required")
	}
	if c.HttpServerParams.Port == "" {
		return fmt.Errorf("http server port is required")
	}

	// Checking MainDbparams
	for name, mainDbConf := range map[string]MainDBParams{
		"MainDB": c.MainDBParams,
	} {
		if mainDbConf.Host == "" {
			return fmt.Errorf("%s: host is required", name)
		}
		if mainDbConf.Username == "" {
			return fmt.Errorf("%s: username is required", name)
		}
		if mainDbConf.Password == "" {
			return fmt.Errorf("%s: password is requred", name)
		}
		if mainDbConf.Port <= 0 || mainDbConf.Port > 65535 {
			return fmt.Errorf("%s: port is invalid", name)
		}
	}

	// Checking S3 params
	if c.S3Params.Endpoint == "" {
		return fmt.Errorf("S3 endpoint is required")
	}
	if c.S3Params.AccessKeyID == "" {
		return fmt.Errorf("S3 access_key id is required")
	}
	if c.S3Params.SecretAccessKey == "" {
		return fmt.Errorf("S3 secret_access_key is required")
	}
	if c.S3Params.BucketName == "" {
		return fmt.Errorf("S3 bucket name is required")
	}

	// Checking chat params
	chat := c.ChatParams
	if chat.DefaultDurationMinutes <= 0 || chat.MaxDurationMinutes < chat.DefaultDurationMinutes {
		return fmt.Errorf("chat duration bounds are invalid: default=%d max=%d",
			chat.DefaultDurationMinutes, chat.MaxDurationMinutes)
	}
	if chat.DefaultRoundCount <= 0 || chat.MaxRoundCount < chat.DefaultRoundCount {
		return fmt.Errorf("chat round bounds are invalid: default=%d max=%d",
			chat.DefaultRoundCount, chat.MaxRoundCount)
	}
	if chat.VoteWindow <= 0 {
		return fmt.Errorf("chat vote_window must be positive")
	}

	// Checking summarizer params
	switch c.SummaryParams.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("summary provider is invalid: %s. try openai/anthropic instead", c.SummaryParams.Provider)
	}
	if c.SummaryParams.Model == "" {
		return fmt.Errorf("summary model is required")
	}
	if c.SummaryParams.Workers <= 0 {
		return fmt.Errorf("summary workers must be positive")
	}
	if c.SummaryParams.TranscriptBudget <= 0 {
		return fmt.Errorf("summary transcript_budget must be positive")
	}

	return nil
}
