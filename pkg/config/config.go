package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	PageSize int           `mapstructure:"page_size"`
}

type NamesConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type NotifyConfig struct {
	Sink string `mapstructure:"sink"`
}

type GatewayConfig struct {
	Addr string `mapstructure:"addr"`
}

type BackendConfig struct {
	Addr      string `mapstructure:"addr"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type SnowflakeConfig struct {
	Node int64 `mapstructure:"node"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Poll      PollConfig      `mapstructure:"poll"`
	Names     NamesConfig     `mapstructure:"names"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Snowflake SnowflakeConfig `mapstructure:"snowflake"`
	Log       LogConfig       `mapstructure:"log"`
}

const (
	SinkNone  = "none"
	SinkKafka = "kafka"
	SinkNATS  = "nats"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("poll.interval", 2*time.Second)
	v.SetDefault("poll.page_size", 20)
	v.SetDefault("names.concurrency", 8)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "chatfeed:names")
	v.SetDefault("kafka.brokers", []string{"localhost:19092"})
	v.SetDefault("kafka.topic", "chat-feed-events")
	v.SetDefault("kafka.group_id", "chat-feed-notifier")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "feed")
	v.SetDefault("notify.sink", SinkNone)
	v.SetDefault("gateway.addr", ":8090")
	v.SetDefault("backend.addr", ":8080")
	v.SetDefault("backend.jwt_secret", "dev_secret_key")
	v.SetDefault("snowflake.node", 1)
	v.SetDefault("log.development", false)
}

// Load reads .env (if present), the optional config file at path, and
// CHATFEED_* environment overrides, e.g. CHATFEED_POLL_INTERVAL=5s.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CHATFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	// comma separated broker lists from the environment arrive as one element
	if len(c.Kafka.Brokers) == 1 && strings.Contains(c.Kafka.Brokers[0], ",") {
		c.Kafka.Brokers = strings.Split(c.Kafka.Brokers[0], ",")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url missing")
	}
	if c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be positive")
	}
	if c.Names.Concurrency <= 0 {
		return errors.New("names.concurrency must be positive")
	}
	switch c.Notify.Sink {
	case SinkNone, "":
		c.Notify.Sink = SinkNone
	case SinkKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return errors.New("kafka.brokers and kafka.topic required for kafka sink")
		}
	case SinkNATS:
		if c.NATS.URL == "" {
			return errors.New("nats.url required for nats sink")
		}
	default:
		return fmt.Errorf("invalid notify.sink %q (use none, kafka or nats)", c.Notify.Sink)
	}
	return nil
}
