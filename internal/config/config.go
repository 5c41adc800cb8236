package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "HOTELGATE"

// Config holds the configuration settings for the gateway.
type Config struct {
	Env            string              `yaml:"env"`             // Env is the current environment: local, development, production.
	ListenAddr     string              `yaml:"listen_addr"`     // ListenAddr is the address of the proxy server.
	MonitoringPort int                 `yaml:"monitoring_port"` // MonitoringPort serves /healthz and /metrics.
	OfflineMode    bool                `yaml:"offline_mode"`    // OfflineMode answers from cache when the backend is down.
	Backend        BackendConfig       `yaml:"backend"`
	Storage        StorageConfig       `yaml:"storage"`
	Database       PostgresConfig      `yaml:"postgres"`
	Redis          RedisConfig         `yaml:"redis"`
	Notifications  NotificationsConfig `yaml:"notifications"`
	Telegram       TelegramConfig      `yaml:"telegram"`
	CORS           CORSConfig          `yaml:"cors"`
	Views          ViewsConfig         `yaml:"views"`
}

// BackendConfig describes the hotel REST backend.
type BackendConfig struct {
	BaseURLs     []string      `yaml:"base_urls"`     // BaseURLs are tried in order until one answers.
	ProxyURL     string        `yaml:"proxy_url"`     // ProxyURL is the base url of the local proxy routes.
	Timeout      time.Duration `yaml:"timeout"`       // Timeout bounds one attempt.
	Retries      int           `yaml:"retries"`       // Retries is the number of attempts per base url.
	RetryDelay   time.Duration `yaml:"retry_delay"`   // RetryDelay grows linearly with the attempt number.
	ServiceToken string        `yaml:"service_token"` // ServiceToken authenticates background polling.
}

// StorageConfig selects where sessions and notifications are kept.
type StorageConfig struct {
	Driver   string `yaml:"driver"`    // Driver is bolt or postgres.
	BoltPath string `yaml:"bolt_path"` // BoltPath is the bolt file used by the bolt driver.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `yaml:"host"`     // Host is the database server address.
	Port     string `yaml:"port"`     // Port is the database server port.
	User     string `yaml:"user"`     // User is the database user.
	Password string `yaml:"password"` // Password is the database user's password.
	Name     string `yaml:"db_name"`  // Name is the name of the database.
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Addr string        `yaml:"addr"` // Addr is empty when the response cache is disabled.
	TTL  time.Duration `yaml:"ttl"`
}

type NotificationsConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Capacity     int           `yaml:"capacity"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`   // Token is empty when telegram pushes are disabled.
	ChatID int64  `yaml:"chat_id"` // ChatID is the staff chat receiving high priority notifications.
	APIURL string `yaml:"api_url"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ViewsConfig tunes the paginated list screens.
type ViewsConfig struct {
	PageSize      int           `yaml:"page_size"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// MustLoad reads .env, HOTELGATE_* environment variables and, when HOTELGATE_CONFIG_PATH is set,
// a YAML file. Environment variables win over the file. It panics on invalid configuration.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configPath := os.Getenv(envPrefix + "_CONFIG_PATH"); configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			panic("config file does not exist: " + configPath)
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			panic("config error: " + err.Error())
		}
	}

	cfg := &Config{
		Env:            v.GetString("env"),
		ListenAddr:     v.GetString("listen_addr"),
		MonitoringPort: v.GetInt("monitoring_port"),
		OfflineMode:    v.GetBool("offline_mode"),
		Backend: BackendConfig{
			BaseURLs:     stringList(v, "backend.base_urls"),
			ProxyURL:     v.GetString("backend.proxy_url"),
			Timeout:      mustDuration(v, "backend.timeout"),
			Retries:      v.GetInt("backend.retries"),
			RetryDelay:   mustDuration(v, "backend.retry_delay"),
			ServiceToken: v.GetString("backend.service_token"),
		},
		Storage: StorageConfig{
			Driver:   v.GetString("storage.driver"),
			BoltPath: v.GetString("storage.bolt_path"),
		},
		Database: PostgresConfig{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetString("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			Name:     v.GetString("postgres.db_name"),
			SSLMode:  v.GetString("postgres.sslmode"),
		},
		Redis: RedisConfig{
			Addr: v.GetString("redis.addr"),
			TTL:  mustDuration(v, "redis.ttl"),
		},
		Notifications: NotificationsConfig{
			PollInterval: mustDuration(v, "notifications.poll_interval"),
			Capacity:     v.GetInt("notifications.capacity"),
		},
		Telegram: TelegramConfig{
			Token:  v.GetString("telegram.token"),
			ChatID: v.GetInt64("telegram.chat_id"),
			APIURL: v.GetString("telegram.api_url"),
		},
		CORS: CORSConfig{
			AllowedOrigins: stringList(v, "cors.allowed_origins"),
		},
		Views: ViewsConfig{
			PageSize:      v.GetInt("views.page_size"),
			RetryAttempts: v.GetInt("views.retry_attempts"),
			RetryBackoff:  mustDuration(v, "views.retry_backoff"),
		},
	}

	if len(cfg.Backend.BaseURLs) == 0 && cfg.Backend.ProxyURL == "" {
		panic("backend base url is empty")
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("monitoring_port", 9090) //nolint:mnd // default port
	v.SetDefault("offline_mode", false)
	v.SetDefault("backend.base_urls", "")
	v.SetDefault("backend.proxy_url", "")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.retries", 3) //nolint:mnd // default attempts
	v.SetDefault("backend.retry_delay", "1s")
	v.SetDefault("backend.service_token", "")
	v.SetDefault("storage.driver", "bolt")
	v.SetDefault("storage.bolt_path", "hotelgate.db")
	v.SetDefault("postgres.host", "")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.db_name", "")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.ttl", "24h")
	v.SetDefault("notifications.poll_interval", "30s")
	v.SetDefault("notifications.capacity", 100) //nolint:mnd // feed size
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("telegram.api_url", "")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("views.page_size", 10)     //nolint:mnd // rows per page
	v.SetDefault("views.retry_attempts", 3) //nolint:mnd // automatic refetches
	v.SetDefault("views.retry_backoff", "2s")
}

// mustDuration parses a duration key given as "10s" style text.
func mustDuration(v *viper.Viper, key string) time.Duration {
	value, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		panic(fmt.Sprintf("failed to parse %s from configuration", key))
	}
	return value
}

// stringList accepts a YAML list or a comma separated string.
func stringList(v *viper.Viper, key string) []string {
	var items []string
	for _, raw := range v.GetStringSlice(key) {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}
