package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultMaxAge 与浏览器缓存、磁盘缓存共用：30 天。
const DefaultMaxAge = 30 * 24 * time.Hour

// DefaultFunctions 是默认启用的样式函数。
var DefaultFunctions = []string{"rand", "pow", "sqrt", "sin", "cos"}

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("BaseDir", ".")
	v.SetDefault("CacheEnabled", true)
	v.SetDefault("CacheDir", defaultCacheDir())
	v.SetDefault("MaxAge", DefaultMaxAge.String())
	v.SetDefault("EvictionRate", 0.1)
	v.SetDefault("Compiler.Style", "expanded")
	v.SetDefault("Compiler.Syntax", "scss")
	v.SetDefault("Compiler.Debug", false)
	v.SetDefault("Compiler.LineComments", false)
	v.SetDefault("Compiler.Functions", DefaultFunctions)
}

func defaultCacheDir() string {
	return filepath.Join(os.TempDir(), "stylecache")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.BaseDir == "" {
		g.BaseDir = "."
	}
	if g.CacheDir == "" {
		g.CacheDir = defaultCacheDir()
	}
	if g.MaxAge.DurationValue() == 0 {
		g.MaxAge = Duration(DefaultMaxAge)
	}
}

func (c *Config) resolvePaths() error {
	absBase, err := filepath.Abs(c.Global.BaseDir)
	if err != nil {
		return fmt.Errorf("无法解析样式根目录: %w", err)
	}
	c.Global.BaseDir = absBase

	absCache, err := filepath.Abs(c.Global.CacheDir)
	if err != nil {
		return fmt.Errorf("无法解析缓存目录: %w", err)
	}
	c.Global.CacheDir = absCache

	if c.Global.LogFilePath != "" {
		absLog, err := filepath.Abs(c.Global.LogFilePath)
		if err != nil {
			return fmt.Errorf("无法解析日志路径: %w", err)
		}
		c.Global.LogFilePath = absLog
	}
	return nil
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
