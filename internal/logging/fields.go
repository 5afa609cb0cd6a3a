package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/any-hub/stylecache/internal/cache"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供样式文件/指纹/命中状态字段，供样式请求日志复用。
func RequestFields(file, fingerprint string, cacheHit, forced bool) logrus.Fields {
	return logrus.Fields{
		"file":        file,
		"fingerprint": fingerprint,
		"cache_hit":   cacheHit,
		"forced":      forced,
	}
}

// SweepFields 汇总一次清理的结果。
func SweepFields(result cache.SweepResult, forced bool) logrus.Fields {
	return logrus.Fields{
		"action":  "cache_sweep",
		"scanned": result.Scanned,
		"removed": result.Removed,
		"failed":  len(result.Failed),
		"forced":  forced,
	}
}
