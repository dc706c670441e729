// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Окружения, в которых может работать сервис.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string   `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string   `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string   `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	GRPCAddress             string   `yaml:"grpc_address" env:"GRPC_ADDRESS"`
	CORSAllowedOrigins      []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Redis                   RedisConnection `yaml:"redis_connection"`
	Cookie                  Cookie          `yaml:"cookie"`
	OAuth                   OAuth           `yaml:"oauth"`
	SMTP                    SMTP            `yaml:"smtp"`
	Notifications           Notifications   `yaml:"notifications"`
	MinIO                   MinIO           `yaml:"minio"`
	Completion              Completion      `yaml:"completion"`
	Conversation            Conversation    `yaml:"conversation"`
	Documents               Documents       `yaml:"documents"`
	RateLimit               RateLimit       `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"15s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey         string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY" env-required:"true"`
	TokenTTL             time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL" env-default:"60m"`
	VerificationTokenTTL time.Duration `yaml:"verification_token_ttl" env-default:"5m"`
	ResetCodeTTL         time.Duration `yaml:"reset_code_ttl" env-default:"15m"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env-default:"0"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// Cookie настройки cookie с токеном доступа.
type Cookie struct {
	Name   string `yaml:"name" env-default:"access_token"`
	Domain string `yaml:"domain" env:"COOKIE_DOMAIN"`
	Secure bool   `yaml:"secure" env:"COOKIE_SECURE" env-default:"true"`
}

// OAuth настройки внешних провайдеров идентификации.
type OAuth struct {
	BackendURL         string        `yaml:"backend_url" env:"BACKEND_URL" env-default:"http://localhost:8080"`
	FrontendURL        string        `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:5173"`
	StateStore         string        `yaml:"state_store" env:"OAUTH_STATE_STORE" env-default:"cookie"`
	StateTTL           time.Duration `yaml:"state_ttl" env-default:"5m"`
	SessionSecret      string        `yaml:"session_secret" env:"OAUTH_SESSION_SECRET"`
	GoogleClientID     string        `yaml:"google_client_id" env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `yaml:"google_client_secret" env:"GOOGLE_CLIENT_SECRET"`
	GitHubClientID     string        `yaml:"github_client_id" env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string        `yaml:"github_client_secret" env:"GITHUB_CLIENT_SECRET"`
}

// SMTP настройки исходящей почты.
type SMTP struct {
	SMTPHost  string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort  string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser  string `yaml:"user" env:"SMTP_USER"`
	SMTPPass  string `yaml:"password" env:"SMTP_PASSWORD"`
	FromEmail string `yaml:"from_email" env:"EMAILS_FROM_EMAIL"`
	FromName  string `yaml:"from_name" env:"EMAILS_FROM_NAME" env-default:"GregAI"`
}

// Notifications настройки очереди отправки писем.
type Notifications struct {
	Broker             string        `yaml:"broker" env:"NOTIFICATIONS_BROKER" env-default:"memory"`
	Workers            int           `yaml:"workers" env-default:"4"`
	QueueSize          int           `yaml:"queue_size" env-default:"256"`
	RabbitMQURL        string        `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"rabbitmq_retry_delay" env-default:"2s"`
}

// MinIO настройки объектного хранилища.
type MinIO struct {
	Endpoint  string        `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey string        `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string        `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket    string        `yaml:"bucket" env:"MINIO_BUCKET" env-default:"documents"`
	Region    string        `yaml:"region" env:"MINIO_REGION" env-default:"us-east-1"`
	UseSSL    bool          `yaml:"use_ssl" env:"MINIO_USE_SSL"`
	URLExpiry time.Duration `yaml:"url_expiry" env-default:"1h"`
	MaxUpload int64         `yaml:"max_upload_bytes" env-default:"20971520"`
}

// Completion настройки API генерации ответов.
type Completion struct {
	APIKey       string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL      string        `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Model        string        `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4"`
	Timeout      time.Duration `yaml:"timeout" env-default:"60s"`
	SystemPrompt string        `yaml:"system_prompt" env-default:"You are a helpful assistant. Respond to the user's message naturally."`
}

// Conversation настройки чата.
type Conversation struct {
	HistoryLimit int `yaml:"history_limit" env-default:"10"`
}

// Documents настройки фоновой обработки документов.
type Documents struct {
	Workers   int `yaml:"workers" env-default:"2"`
	QueueSize int `yaml:"queue_size" env-default:"64"`
}

// RateLimit настройки ограничения частоты запросов к auth-эндпоинтам.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"1"`
	Burst int     `yaml:"burst" env-default:"5"`
}

// MustLoad функция для загрузки конфига. Сначала подхватывает .env, если он есть,
// затем читает YAML из CONFIG_PATH с переопределениями из окружения.
func MustLoad() *Config {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// Load читает конфиг по указанному пути.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	return &cfg, nil
}

// String выводит конфиг без секретов.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"GRPCAddress: %s\n"+
			"Redis: %s\n"+
			"OAuth:\n"+
			"  BackendURL: %s\n"+
			"  FrontendURL: %s\n"+
			"  StateStore: %s\n"+
			"Notifications: %s\n"+
			"MinIO: %s/%s\n"+
			"Completion model: %s\n",
		c.Env,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.GRPCAddress,
		c.Redis.AddressRedis,
		c.OAuth.BackendURL,
		c.OAuth.FrontendURL,
		c.OAuth.StateStore,
		c.Notifications.Broker,
		c.MinIO.Endpoint,
		c.MinIO.Bucket,
		c.Completion.Model,
	)
}
