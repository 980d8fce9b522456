package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIServerConfig holds the HTTP listener settings of the API server.
type APIServerConfig struct {
	Host string     `mapstructure:"HOST"`
	Port string     `mapstructure:"PORT"`
	CORS CORSConfig `mapstructure:"CORS"`
}

// CORSConfig holds configuration for CORS.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `mapstructure:"EXPOSED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// RedisConfig holds configuration for Redis.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"ENABLED"`
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// Config holds all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName    string          `mapstructure:"APP_NAME"`
	AppVersion string          `mapstructure:"APP_VERSION"`
	LogLevel   string          `mapstructure:"LOG_LEVEL"`
	LogFormat  string          `mapstructure:"LOG_FORMAT"` // console | json
	Server     ServerConfig    `mapstructure:"SERVER"`
	APIServer  APIServerConfig `mapstructure:"API_SERVER"`
	Kafka      KafkaConfig     `mapstructure:"KAFKA"`
	Database   DatabaseConfig  `mapstructure:"DATABASE"`
	Mongo      MongoConfig     `mapstructure:"MONGO"`
	Auth       AuthConfig      `mapstructure:"AUTH"`
	Redis      RedisConfig     `mapstructure:"REDIS"`
	Messaging  MessagingConfig `mapstructure:"MESSAGING"`
	Search     SearchConfig    `mapstructure:"SEARCH"`
}

// ServerConfig holds the timeouts applied to the HTTP server.
type ServerConfig struct {
	ReadTimeout     time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `mapstructure:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// KafkaConfig holds configuration for Kafka.
type KafkaConfig struct {
	Enabled           bool     `mapstructure:"ENABLED"`
	Brokers           []string `mapstructure:"BROKERS"`
	ClientID          string   `mapstructure:"CLIENT_ID"`
	RelationshipTopic string   `mapstructure:"RELATIONSHIP_TOPIC"` // friend request lifecycle events
	ConsumerGroup     string   `mapstructure:"CONSUMER_GROUP"`
	Protocol          string   `mapstructure:"PROTOCOL"`
}

// DatabaseConfig selects the persistence backend. TYPE is one of "mongo",
// "postgres" or "sqlite"; the remaining fields apply to the relational backends.
type DatabaseConfig struct {
	Type     string `mapstructure:"TYPE"`
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT"`
	User     string `mapstructure:"USER"`
	Password string `mapstructure:"PASSWORD"`
	DBName   string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"SSL_MODE"`
	Path     string `mapstructure:"PATH"` // sqlite file
}

// MongoConfig holds configuration for the MongoDB backend.
type MongoConfig struct {
	URI            string        `mapstructure:"URI"`
	Database       string        `mapstructure:"DATABASE"`
	MaxPoolSize    uint64        `mapstructure:"MAX_POOL_SIZE"`
	MaxRetry       int           `mapstructure:"MAX_RETRY"`
	ConnectTimeout time.Duration `mapstructure:"CONNECT_TIMEOUT"`
}

// AuthConfig holds configuration for authentication (e.g., JWT).
type AuthConfig struct {
	JWTSecretKey string        `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiry    time.Duration `mapstructure:"JWT_EXPIRY"`
	CookieName   string        `mapstructure:"COOKIE_NAME"`
	SecureCookie bool          `mapstructure:"SECURE_COOKIE"`
}

// MessagingConfig bounds direct messages and the conversation list.
type MessagingConfig struct {
	MaxContentLength   int `mapstructure:"MAX_CONTENT_LENGTH"`
	ConversationWindow int `mapstructure:"CONVERSATION_WINDOW"`
}

// SearchConfig bounds the user directory search.
type SearchConfig struct {
	MinQueryLength int `mapstructure:"MIN_QUERY_LENGTH"`
	Limit          int `mapstructure:"LIMIT"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()

	v.SetDefault("APP_NAME", "StayPrivate")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("SERVER.READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("SERVER.SHUTDOWN_TIMEOUT", 10*time.Second)

	v.SetDefault("API_SERVER.HOST", "0.0.0.0")
	v.SetDefault("API_SERVER.PORT", "8081")
	v.SetDefault("API_SERVER.CORS.ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"})
	v.SetDefault("API_SERVER.CORS.EXPOSED_HEADERS", []string{"Content-Length"})
	v.SetDefault("API_SERVER.CORS.ALLOW_CREDENTIALS", true)
	v.SetDefault("API_SERVER.CORS.MAX_AGE", 300)

	v.SetDefault("KAFKA.ENABLED", false)
	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "stayprivate-api")
	v.SetDefault("KAFKA.RELATIONSHIP_TOPIC", "stayprivate-relationships")
	v.SetDefault("KAFKA.CONSUMER_GROUP", "stayprivate-reconciler")
	v.SetDefault("KAFKA.PROTOCOL", "plaintext")

	v.SetDefault("DATABASE.TYPE", "mongo")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "stayprivate")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.PATH", "./stayprivate.db")

	v.SetDefault("MONGO.URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO.DATABASE", "stayprivate")
	v.SetDefault("MONGO.MAX_POOL_SIZE", 100)
	v.SetDefault("MONGO.MAX_RETRY", 3)
	v.SetDefault("MONGO.CONNECT_TIMEOUT", 10*time.Second)

	v.SetDefault("AUTH.JWT_SECRET_KEY", "a_very_secret_key_that_should_be_changed")
	v.SetDefault("AUTH.JWT_EXPIRY", 7*24*time.Hour)
	v.SetDefault("AUTH.COOKIE_NAME", "auth_token")
	v.SetDefault("AUTH.SECURE_COOKIE", false)

	v.SetDefault("REDIS.ENABLED", true)
	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)

	v.SetDefault("MESSAGING.MAX_CONTENT_LENGTH", 5000)
	v.SetDefault("MESSAGING.CONVERSATION_WINDOW", 100)

	v.SetDefault("SEARCH.MIN_QUERY_LENGTH", 2)
	v.SetDefault("SEARCH.LIMIT", 20)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// MONGO_URI overrides Mongo.URI, API_SERVER_PORT overrides APIServer.Port, etc.
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		// Defaults are complete, a missing file is fine.
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
