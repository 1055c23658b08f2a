package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 节点类型：一个二进制，按配置跑不同角色
const (
	NodeTypeAPIGateway = "apiGateway" // HTTP 网关节点
	NodeTypeAuthNode   = "authNode"   // 认证 worker + 在线状态调度
)

type TokenConfig struct {
	Secret string        `mapstructure:"secret"`
	Alg    string        `mapstructure:"alg"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type NatsConfig struct {
	Servers []string      `mapstructure:"servers"`
	Name    string        `mapstructure:"name"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type KafkaConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers"`
	PresenceTopic string   `mapstructure:"presence_topic"`
}

type RPCConfig struct {
	ResponseTimeout   time.Duration `mapstructure:"response_timeout"`
	MessageExpiration time.Duration `mapstructure:"message_expiration"`
	Retries           int           `mapstructure:"retries"`
}

type PresenceConfig struct {
	GateInterval      time.Duration `mapstructure:"gate_interval"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	SyncInterval      time.Duration `mapstructure:"sync_interval"`
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout"`
}

type AppConfig struct {
	NodeType string `mapstructure:"node_type"`
	NodeID   string `mapstructure:"node_id"`
	HTTPPort int    `mapstructure:"http_port"`
	LogLevel string `mapstructure:"log_level"`

	Token    TokenConfig    `mapstructure:"token"`
	Nats     NatsConfig     `mapstructure:"nats"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RPC      RPCConfig      `mapstructure:"rpc"`
	Presence PresenceConfig `mapstructure:"presence"`
}

// Load 读取 yaml 配置（路径可为空，走默认值）并叠加环境变量（前缀 AP_）。
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.SetDefault("node_type", NodeTypeAPIGateway)
	v.SetDefault("node_id", "node_1")
	v.SetDefault("http_port", 8080)
	v.SetDefault("log_level", "debug")

	v.SetDefault("token.secret", "")
	v.SetDefault("token.alg", "HS256")
	v.SetDefault("token.ttl", 24*time.Hour)

	v.SetDefault("nats.servers", []string{"nats://127.0.0.1:4222"})
	v.SetDefault("nats.name", "auth-bridge")
	v.SetDefault("nats.timeout", 3*time.Second)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "authsvc")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.presence_topic", "presence_events")

	v.SetDefault("rpc.response_timeout", 30*time.Second)
	v.SetDefault("rpc.message_expiration", 60*time.Second)
	v.SetDefault("rpc.retries", 3)

	v.SetDefault("presence.gate_interval", time.Minute)
	v.SetDefault("presence.sweep_interval", 5*time.Minute)
	v.SetDefault("presence.sync_interval", 60*time.Minute)
	v.SetDefault("presence.inactivity_timeout", 30*time.Minute)

	v.SetEnvPrefix("AP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	// 消息过期必须盖过响应超时，否则请求可能在等待结束前就消失
	if cfg.RPC.MessageExpiration < cfg.RPC.ResponseTimeout {
		cfg.RPC.MessageExpiration = cfg.RPC.ResponseTimeout
	}
	return &cfg, nil
}
