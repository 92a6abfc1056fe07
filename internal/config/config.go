package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const EnvPrefix = "LIAPTUI"

type Config struct {
	HTTP       HTTPConf       `mapstructure:"http"`
	Metrics    MetricsConf    `mapstructure:"metrics"`
	Log        LogConf        `mapstructure:"log"`
	Storage    StorageConf    `mapstructure:"storage"`
	Mongo      MongoConf      `mapstructure:"mongo"`
	Redis      RedisConf      `mapstructure:"redis"`
	Nats       NatsConf       `mapstructure:"nats"`
	Jwt        JwtConf        `mapstructure:"jwt"`
	Queue      QueueConf      `mapstructure:"queue"`
	Connection ConnectionConf `mapstructure:"connection"`
	Sweeper    SweeperConf    `mapstructure:"sweeper"`
}

type HTTPConf struct {
	Port           int    `mapstructure:"port"`
	AllowedOrigins string `mapstructure:"allowedOrigins"`
}

type MetricsConf struct {
	Port int `mapstructure:"port"`
}

type LogConf struct {
	Level string `mapstructure:"level"`
}

type StorageConf struct {
	Driver string `mapstructure:"driver"`
}

type MongoConf struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConf struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	QueueTTL time.Duration `mapstructure:"queueTTL"`
}

type NatsConf struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subjectPrefix"`
}

type JwtConf struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type QueueConf struct {
	MaxSize       int           `mapstructure:"maxSize"`
	MessageMaxAge time.Duration `mapstructure:"messageMaxAge"`
}

type ConnectionConf struct {
	StaleAfter        time.Duration `mapstructure:"staleAfter"`
	DisconnectTimeout time.Duration `mapstructure:"disconnectTimeout"`
	HealthCacheTTL    time.Duration `mapstructure:"healthCacheTTL"`
}

type SweeperConf struct {
	Interval time.Duration `mapstructure:"interval"`
}

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.allowedOrigins", "*")
	v.SetDefault("metrics.port", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.driver", DriverMongo)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo.database", "liaptui")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queueTTL", 24*time.Hour)
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subjectPrefix", "liaptui")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("queue.maxSize", 50)
	v.SetDefault("queue.messageMaxAge", 30*time.Minute)
	v.SetDefault("connection.staleAfter", 30*time.Second)
	v.SetDefault("connection.disconnectTimeout", 10*time.Minute)
	v.SetDefault("connection.healthCacheTTL", 2*time.Second)
	v.SetDefault("sweeper.interval", time.Minute)
}

func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Load builds the configuration from defaults, the optional file and
// LIAPTUI_* environment variables, in increasing precedence.
func Load(configFile string) (*Config, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch reloads configFile on every change and hands the new config to
// onChange. Invalid edits are reported to onError and otherwise ignored.
func Watch(configFile string, onChange func(*Config), onError func(error)) error {
	if configFile == "" {
		return errors.New("no config file to watch")
	}
	v, err := newViper(configFile)
	if err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			onError(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("mongo.uri is required for the mongo driver"))
		}
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the mongo driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.HTTP.Port <= 0 {
		errs = append(errs, errors.New("http.port must be positive"))
	}
	if c.Jwt.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.Queue.MaxSize <= 0 {
		errs = append(errs, errors.New("queue.maxSize must be positive"))
	}
	if c.Connection.StaleAfter <= 0 || c.Connection.DisconnectTimeout <= 0 {
		errs = append(errs, errors.New("connection thresholds must be positive"))
	}
	if c.Sweeper.Interval <= 0 {
		errs = append(errs, errors.New("sweeper.interval must be positive"))
	}
	return errors.Join(errs...)
}
