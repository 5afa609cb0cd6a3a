package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/any-hub/stylecache/internal/compiler"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if strings.TrimSpace(g.BaseDir) == "" {
		return newFieldError("Global.BaseDir", "不能为空")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}
	if g.EvictionRate < 0 || g.EvictionRate > 1 {
		return newFieldError("Global.EvictionRate", "必须在 0-1 之间")
	}
	if g.CacheEnabled {
		if strings.TrimSpace(g.CacheDir) == "" {
			return newFieldError("Global.CacheDir", "启用缓存时不能为空")
		}
		if g.MaxAge.DurationValue() <= 0 {
			return newFieldError("Global.MaxAge", "必须大于 0")
		}
	}

	if _, err := compiler.ParseStyle(c.Compiler.Style); err != nil {
		return newFieldError(compilerField("Style"), "仅支持 expanded/compact/compressed")
	}
	if _, err := compiler.ParseSyntax(c.Compiler.Syntax); err != nil {
		return newFieldError(compilerField("Syntax"), "仅支持 scss/css")
	}
	for _, name := range c.Compiler.Functions {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := compiler.LookupBuiltin(key); !ok {
			return newFieldError(compilerField("Functions"), fmt.Sprintf("未知函数: %s", name))
		}
	}

	return nil
}
