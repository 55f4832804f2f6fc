// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "configs/storefront.yaml"

// Config 是服务的完整配置，先取默认值，再读 YAML，最后由环境变量覆盖。
type Config struct {
	App   AppConfig   `yaml:"app"`
	Shop  ShopConfig  `yaml:"shop"`
	Infra InfraConfig `yaml:"infra"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
}

// ShopConfig 业务参数
type ShopConfig struct {
	DiscountInterval   int           `yaml:"discountInterval"`
	DiscountPercentage int           `yaml:"discountPercentage"`
	IssuanceRule       string        `yaml:"issuanceRule"` // CEL 表达式，可用变量 orderCount、interval
	SessionTTL         time.Duration `yaml:"sessionTTL"`
}

type InfraConfig struct {
	Jaeger JaegerConfig `yaml:"jaeger"`
	MySQL  MySQLConfig  `yaml:"mysql"`
	Redis  RedisConfig  `yaml:"redis"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Nacos  NacosConfig  `yaml:"nacos"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type MySQLConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	OrderTopic    string   `yaml:"orderTopic"`
	DiscountTopic string   `yaml:"discountTopic"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

// DefaultConfig 本地单进程运行：所有外部依赖关闭，使用内存仓储。
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{Name: "storefront", Port: 8080, LogLevel: "info"},
		Shop: ShopConfig{
			DiscountInterval:   2,
			DiscountPercentage: 10,
			IssuanceRule:       "interval > 0 && orderCount % interval == 0",
			SessionTTL:         24 * time.Hour,
		},
		Infra: InfraConfig{
			MySQL: MySQLConfig{Host: "localhost", Port: 3306, User: "root", Database: "storefront"},
			Redis: RedisConfig{Addr: "localhost:6379"},
			Kafka: KafkaConfig{
				Brokers:       []string{"localhost:9092"},
				OrderTopic:    "storefront.orders",
				DiscountTopic: "storefront.discounts",
			},
			Nacos: NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
	}
}

var current atomic.Pointer[Config]

// Init 从 CONFIG_FILE 加载配置并设为当前配置。
func Init() (*Config, error) {
	cfg, err := LoadConfig(getEnv("CONFIG_FILE", defaultConfigFile))
	if err != nil {
		return nil, err
	}
	current.Store(cfg)
	return cfg, nil
}

// GetCurrentConfig 未调用 Init 时返回默认配置。
func GetCurrentConfig() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	return DefaultConfig()
}

// LoadConfig 文件不存在不是错误，此时只使用默认值和环境变量。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var err error
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v, ok := os.LookupEnv(key)
		if !ok || err != nil {
			return
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			err = errors.Wrapf(convErr, "env %s", key)
			return
		}
		*dst = n
	}
	setBool := func(key string, dst *bool) {
		v, ok := os.LookupEnv(key)
		if !ok || err != nil {
			return
		}
		b, convErr := strconv.ParseBool(v)
		if convErr != nil {
			err = errors.Wrapf(convErr, "env %s", key)
			return
		}
		*dst = b
	}

	setInt("HTTP_PORT", &cfg.App.Port)
	setString("LOG_LEVEL", &cfg.App.LogLevel)
	setInt("DISCOUNT_INTERVAL", &cfg.Shop.DiscountInterval)
	setString("ISSUANCE_RULE", &cfg.Shop.IssuanceRule)
	setString("JAEGER_ENDPOINT", &cfg.Infra.Jaeger.Endpoint)

	setBool("MYSQL_ENABLED", &cfg.Infra.MySQL.Enabled)
	setString("MYSQL_HOST", &cfg.Infra.MySQL.Host)
	setInt("MYSQL_PORT", &cfg.Infra.MySQL.Port)
	setString("MYSQL_USER", &cfg.Infra.MySQL.User)
	setString("MYSQL_PASSWORD", &cfg.Infra.MySQL.Password)
	setString("MYSQL_DATABASE", &cfg.Infra.MySQL.Database)

	setBool("REDIS_ENABLED", &cfg.Infra.Redis.Enabled)
	setString("REDIS_ADDR", &cfg.Infra.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Infra.Redis.Password)

	setBool("KAFKA_ENABLED", &cfg.Infra.Kafka.Enabled)
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}

	setBool("NACOS_ENABLED", &cfg.Infra.Nacos.Enabled)
	setString("NACOS_SERVER_ADDRS", &cfg.Infra.Nacos.ServerAddrs)
	setString("NACOS_NAMESPACE", &cfg.Infra.Nacos.Namespace)
	setString("NACOS_GROUP", &cfg.Infra.Nacos.Group)
	return err
}

func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return errors.Errorf("invalid app.port %d", c.App.Port)
	}
	if c.Shop.DiscountInterval < 0 {
		return errors.Errorf("shop.discountInterval must not be negative, got %d", c.Shop.DiscountInterval)
	}
	if c.Shop.DiscountPercentage < 0 || c.Shop.DiscountPercentage > 100 {
		return errors.Errorf("shop.discountPercentage must be within 0..100, got %d", c.Shop.DiscountPercentage)
	}
	if c.Infra.Kafka.Enabled && len(c.Infra.Kafka.Brokers) == 0 {
		return errors.New("infra.kafka.brokers is empty")
	}
	return nil
}

// getEnv 从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
