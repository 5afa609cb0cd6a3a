package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/stylecache/internal/compiler"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"720h" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数，启动时加载一次后只读。
type GlobalConfig struct {
	ListenPort    int      `mapstructure:"ListenPort"`
	LogLevel      string   `mapstructure:"LogLevel"`
	LogFilePath   string   `mapstructure:"LogFilePath"`
	LogMaxSize    int      `mapstructure:"LogMaxSize"`
	LogMaxBackups int      `mapstructure:"LogMaxBackups"`
	LogCompress   bool     `mapstructure:"LogCompress"`
	BaseDir       string   `mapstructure:"BaseDir"`
	CacheEnabled  bool     `mapstructure:"CacheEnabled"`
	CacheDir      string   `mapstructure:"CacheDir"`
	MaxAge        Duration `mapstructure:"MaxAge"`
	EvictionRate  float64  `mapstructure:"EvictionRate"`
}

// CompilerConfig 对应 [Compiler] 表，参与指纹计算。
type CompilerConfig struct {
	Style        string   `mapstructure:"Style"`
	Syntax       string   `mapstructure:"Syntax"`
	Debug        bool     `mapstructure:"Debug"`
	LineComments bool     `mapstructure:"LineComments"`
	Functions    []string `mapstructure:"Functions"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig   `mapstructure:",squash"`
	Compiler CompilerConfig `mapstructure:"Compiler"`
}

// CompilerOptions 将 [Compiler] 表转换为编译器配置，未知风格/函数会返回错误。
func (c *Config) CompilerOptions() (compiler.Options, error) {
	cc := c.Compiler
	return compiler.NewOptions(cc.Style, cc.Syntax, cc.Debug, cc.LineComments, cc.Functions)
}

// CacheMode 输出 `enabled` 或 `disabled`，供日志字段使用。
func (g GlobalConfig) CacheMode() string {
	if g.CacheEnabled {
		return "enabled"
	}
	return "disabled"
}
