package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 网关：只负责转发与 CORS
type GatewayConfig struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`
	Auth struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"auth"`
	Realtime struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"realtime"`
}

type AuthConfig struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"mysql"`
	Jwt struct {
		Secret     string        `mapstructure:"secret"`
		AccessTTL  time.Duration `mapstructure:"accessTTL"`
		RefreshTTL time.Duration `mapstructure:"refreshTTL"`
	} `mapstructure:"jwt"`
}

type RealtimeConfig struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"mysql"`
	Redis struct {
		Addrs    []string `mapstructure:"addrs"`
		Password string   `mapstructure:"password"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Auth struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"auth"`
	Cache struct {
		ProgressTTL time.Duration `mapstructure:"progressTTL"`
		ChatTTL     time.Duration `mapstructure:"chatTTL"`
	} `mapstructure:"cache"`
	Presence struct {
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"presence"`
	Websocket struct {
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"websocket"`
}

// Load 读取 <name>.yaml 并反序列化到 out。
// 环境变量 EDU_<SECTION>_<KEY> 覆盖文件中的同名项，例如 EDU_MYSQL_DSN。
func Load(name string, out any) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	// 兼容从项目根目录或 backend 目录启动
	v.AddConfigPath("./backend/config")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("EDU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	return v.Unmarshal(out)
}
