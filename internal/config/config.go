package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Safety   SafetyConfig   `mapstructure:"safety"`
	Sophia   SophiaConfig   `mapstructure:"sophia"`
	Channels ChannelsConfig `mapstructure:"channels"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
}

// RedisConfig Redis 配置（任务队列、安全限流计数）
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// EngineConfig 执行引擎配置
type EngineConfig struct {
	PollInterval     string `mapstructure:"poll_interval"`     // 轮询间隔，如 "30s"
	BatchSize        int    `mapstructure:"batch_size"`        // 单次轮询最多处理的步骤数
	DefaultThreshold int    `mapstructure:"default_threshold"` // 默认置信度阈值 (0-100)
	WorkerConcurrency int   `mapstructure:"worker_concurrency"` // asynq 并发 worker 数
}

// PollIntervalDuration 解析轮询间隔，非法值回退为 30 秒
func (c *EngineConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// SafetyConfig 渠道安全限额配置（warmup 上限）
type SafetyConfig struct {
	DailyLimits  map[string]int `mapstructure:"daily_limits"`  // 渠道 -> 每日上限
	WeeklyLimits map[string]int `mapstructure:"weekly_limits"` // 渠道 -> 每周上限
}

// ChannelsConfig 渠道连接器配置
// connectors_file 指向 JSON 连接器清单，未配置时所有渠道使用 dry-run 发送器
type ChannelsConfig struct {
	ConnectorsFile string `mapstructure:"connectors_file"`
}

// SophiaConfig Sophia 内容/置信度生成配置
type SophiaConfig struct {
	Provider   string `mapstructure:"provider"` // openai, template
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max_retries"`
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_DATABASE_HOST

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// setDefaults 引擎相关的安全默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.poll_interval", "30s")
	v.SetDefault("engine.batch_size", 100)
	v.SetDefault("engine.default_threshold", 80)
	v.SetDefault("engine.worker_concurrency", 10)
	v.SetDefault("sophia.provider", "template")
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
