// Package config 提供统一的配置加载、校验与热更新能力.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wyfcoding/montecarlo/logging"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 全局顶级配置结构.
type Config struct {
	Version    string           `mapstructure:"version"    toml:"version"`
	Server     ServerConfig     `mapstructure:"server"     toml:"server"`
	Log        LogConfig        `mapstructure:"log"        toml:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    toml:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"    toml:"tracing"`
	Market     MarketConfig     `mapstructure:"market"     toml:"market"`
	Simulation SimulationConfig `mapstructure:"simulation" toml:"simulation"`
	Report     ReportConfig     `mapstructure:"report"     toml:"report"`
	Cache      CacheConfig      `mapstructure:"cache"      toml:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"  toml:"ratelimit"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"   toml:"schedule"`
	Snowflake  SnowflakeConfig  `mapstructure:"snowflake"  toml:"snowflake"`
}

// ServerConfig 定义服务器运行时的基础网络与环境参数.
type ServerConfig struct {
	Name        string `mapstructure:"name"        toml:"name"        validate:"required"`
	Environment string `mapstructure:"environment" toml:"environment" validate:"oneof=dev test prod"`
	HTTP        struct {
		Addr              string        `mapstructure:"addr"                toml:"addr"`
		Port              int           `mapstructure:"port"                toml:"port"                validate:"required,min=1,max=65535"`
		ReadTimeout       time.Duration `mapstructure:"read_timeout"        toml:"read_timeout"`
		ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" toml:"read_header_timeout"`
		WriteTimeout      time.Duration `mapstructure:"write_timeout"       toml:"write_timeout"`
		IdleTimeout       time.Duration `mapstructure:"idle_timeout"        toml:"idle_timeout"`
		MaxBodyBytes      int64         `mapstructure:"max_body_bytes"      toml:"max_body_bytes"`
	} `mapstructure:"http" toml:"http"`
	GRPC struct {
		Addr           string `mapstructure:"addr"              toml:"addr"`
		Port           int    `mapstructure:"port"              toml:"port"              validate:"required,min=1,max=65535"`
		MaxRecvMsgSize int    `mapstructure:"max_recv_msg_size" toml:"max_recv_msg_size"`
		MaxSendMsgSize int    `mapstructure:"max_send_msg_size" toml:"max_send_msg_size"`
	} `mapstructure:"grpc" toml:"grpc"`
}

// LogConfig 日志输出与切割配置.
type LogConfig struct {
	Level         string        `mapstructure:"level"          toml:"level"          validate:"omitempty,oneof=debug info warn error"`
	Format        string        `mapstructure:"format"         toml:"format"         validate:"omitempty,oneof=json text"`
	File          string        `mapstructure:"file"           toml:"file"`
	Console       bool          `mapstructure:"console"        toml:"console"`
	MaxSize       int           `mapstructure:"max_size"       toml:"max_size"` // MB
	MaxBackups    int           `mapstructure:"max_backups"    toml:"max_backups"`
	MaxAge        int           `mapstructure:"max_age"        toml:"max_age"` // 天
	Compress      bool          `mapstructure:"compress"       toml:"compress"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold" toml:"slow_threshold"` // HTTP 慢请求阈值
}

// LoggingConfig 转换为 logging 包的配置.
func (c LogConfig) LoggingConfig(service, module string) logging.Config {
	return logging.Config{
		Service:    service,
		Module:     module,
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		Console:    c.Console,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// MetricsConfig 普罗米修斯指标暴露配置.
type MetricsConfig struct {
	Port    string `mapstructure:"port"    toml:"port"`
	Path    string `mapstructure:"path"    toml:"path"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// TracingConfig 链路追踪配置，OTLPEndpoint 为空时不导出.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"gte=0,lte=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
}

// MarketConfig 历史行情来源.
type MarketConfig struct {
	Ticker         string `mapstructure:"ticker"           toml:"ticker"`
	DataFile       string `mapstructure:"data_file"        toml:"data_file"        validate:"required"`
	StartDate      string `mapstructure:"start_date"       toml:"start_date"       validate:"omitempty,datetime=2006-01-02"`
	EndDate        string `mapstructure:"end_date"         toml:"end_date"         validate:"omitempty,datetime=2006-01-02"`
	PeriodsPerYear int    `mapstructure:"periods_per_year" toml:"periods_per_year" validate:"gte=0"`
}

// SimulationConfig 模拟、定价与风险参数.
type SimulationConfig struct {
	TimeSteps        int           `mapstructure:"time_steps"         toml:"time_steps"         validate:"min=1"`
	Simulations      int           `mapstructure:"simulations"        toml:"simulations"        validate:"min=2"`
	HorizonYears     float64       `mapstructure:"horizon_years"      toml:"horizon_years"      validate:"gt=0"`
	RiskFreeRate     float64       `mapstructure:"risk_free_rate"     toml:"risk_free_rate"     validate:"gte=0"`
	StrikePrice      float64       `mapstructure:"strike_price"       toml:"strike_price"       validate:"gt=0"`
	ConfidenceLevel  float64       `mapstructure:"confidence_level"   toml:"confidence_level"   validate:"gt=0,lt=1"`
	Antithetic       bool          `mapstructure:"antithetic"         toml:"antithetic"`
	Seed             uint64        `mapstructure:"seed"               toml:"seed"`
	ChunkSize        int           `mapstructure:"chunk_size"         toml:"chunk_size"         validate:"gte=0"`
	Workers          int           `mapstructure:"workers"            toml:"workers"            validate:"gte=0"`
	ConvergenceSizes []int         `mapstructure:"convergence_sizes"  toml:"convergence_sizes"  validate:"dive,min=2"`
	Timeout          time.Duration `mapstructure:"timeout"            toml:"timeout"`
	MaxPaths         int           `mapstructure:"max_paths"          toml:"max_paths"          validate:"gte=0"` // 单次请求路径数上限，0 用默认值
	MaxCells         int           `mapstructure:"max_cells"          toml:"max_cells"          validate:"gte=0"` // (steps+1)×paths 上限
}

// ReportConfig 报告输出配置.
type ReportConfig struct {
	Dir       string `mapstructure:"dir"        toml:"dir"`
	PlotPaths int    `mapstructure:"plot_paths" toml:"plot_paths" validate:"gte=0"`
	Bins      int    `mapstructure:"bins"       toml:"bins"       validate:"gte=0"`
	Enabled   bool   `mapstructure:"enabled"    toml:"enabled"`
}

// CacheConfig 结果缓存配置（bigcache）.
type CacheConfig struct {
	Prefix           string        `mapstructure:"prefix"              toml:"prefix"`
	LifeWindow       time.Duration `mapstructure:"life_window"         toml:"life_window"`
	CleanWindow      time.Duration `mapstructure:"clean_window"        toml:"clean_window"`
	Shards           int           `mapstructure:"shards"              toml:"shards"`
	MaxEntrySize     int           `mapstructure:"max_entry_size"      toml:"max_entry_size"`
	HardMaxCacheSize int           `mapstructure:"hard_max_cache_size" toml:"hard_max_cache_size"`
	Enabled          bool          `mapstructure:"enabled"             toml:"enabled"`
}

// RateLimitConfig 令牌桶限流参数.
type RateLimitConfig struct {
	Rate          int  `mapstructure:"rate"           toml:"rate"`
	Burst         int  `mapstructure:"burst"          toml:"burst"`
	MaxConcurrent int  `mapstructure:"max_concurrent" toml:"max_concurrent"` // 同时进行的模拟请求上限，0 不限
	Enabled       bool `mapstructure:"enabled"        toml:"enabled"`
}

// ScheduleConfig 定时重算配置，Cron 为标准 5 段表达式.
type ScheduleConfig struct {
	Cron    string `mapstructure:"cron"    toml:"cron"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// SnowflakeConfig 运行 ID 生成器配置.
type SnowflakeConfig struct {
	StartTime string `mapstructure:"start_time" toml:"start_time"`
	Type      string `mapstructure:"type"       toml:"type"       validate:"omitempty,oneof=sonyflake snowflake"`
	MachineID int64  `mapstructure:"machine_id" toml:"machine_id"`
}

var (
	mu        sync.RWMutex
	vInstance = viper.New()
	onReload  []func(*Config)
	validate  = validator.New()
)

// RegisterReloadHook 注册配置热更新回调，回调收到的是新的配置副本.
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	onReload = append(onReload, hook)
}

// Validate 对配置做结构校验.
func Validate(conf *Config) error {
	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Load 读取 TOML 配置文件，应用 APP_ 前缀的环境变量覆盖并校验.
// 文件变更时重新读取到新的副本，校验通过才调整日志级别并触发回调，conf 本身不会被原地修改.
func Load(path string, conf *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config error: %w", err)
	}
	if err := v.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := Validate(conf); err != nil {
		return err
	}

	v.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)

		next := new(Config)
		if err := v.Unmarshal(next); err != nil {
			slog.Error("reload config unmarshal failed", "error", err)
			return
		}
		if err := Validate(next); err != nil {
			slog.Error("reload config validation failed", "error", err)
			return
		}

		logging.SetLevel(next.Log.Level)
		slog.Info("config hot-reloaded and validated successfully")

		mu.RLock()
		hooks := append([]func(*Config){}, onReload...)
		mu.RUnlock()
		for _, hook := range hooks {
			hook(next)
		}
	})
	v.WatchConfig()

	mu.Lock()
	vInstance = v
	mu.Unlock()
	return nil
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)
		return
	}

	var configMap map[string]any
	if err := json.Unmarshal(data, &configMap); err != nil {
		slog.Error("failed to unmarshal config for masking", "error", err)
		return
	}

	mask(configMap)

	maskedJSON, err := json.MarshalIndent(configMap, "  ", "  ")
	if err != nil {
		slog.Error("failed to marshal masked config", "error", err)
		return
	}

	slog.Info("current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "token", "endpoint"}

	for key, val := range configMap {
		switch typed := val.(type) {
		case map[string]any:
			mask(typed)
			continue
		case []any:
			for _, item := range typed {
				if itemMap, ok := item.(map[string]any); ok {
					mask(itemMap)
				}
			}
			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"
				break
			}
		}
	}
}

// GetViper 返回最近一次 Load 使用的 Viper 实例.
func GetViper() *viper.Viper {
	mu.RLock()
	defer mu.RUnlock()
	return vInstance
}
