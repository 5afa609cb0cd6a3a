package routes

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/stylecache/internal/cache"
	"github.com/any-hub/stylecache/internal/compiler"
	"github.com/any-hub/stylecache/internal/fingerprint"
	"github.com/any-hub/stylecache/internal/version"
)

// Diagnostics 汇总诊断接口需要的只读依赖；Store 为空表示未启用磁盘缓存。
type Diagnostics struct {
	Store        cache.Store
	Options      compiler.Options
	BaseDir      string
	CacheEnabled bool
	CacheDir     string
	MaxAge       time.Duration
	EvictionRate float64
}

type statusPayload struct {
	Version  string          `json:"version"`
	BaseDir  string          `json:"base_dir"`
	Cache    cachePayload    `json:"cache"`
	Compiler compilerPayload `json:"compiler"`
}

type cachePayload struct {
	Enabled       bool    `json:"enabled"`
	Dir           string  `json:"dir,omitempty"`
	MaxAgeSeconds int64   `json:"max_age_seconds"`
	EvictionRate  float64 `json:"eviction_rate"`
}

type compilerPayload struct {
	Style        string   `json:"style"`
	Syntax       string   `json:"syntax"`
	Debug        bool     `json:"debug"`
	LineComments bool     `json:"line_comments"`
	Functions    []string `json:"functions"`
	Serialized   string   `json:"serialized"`
	Digest       string   `json:"digest"`
}

type entryPayload struct {
	Fingerprint string    `json:"fingerprint"`
	SizeBytes   int64     `json:"size_bytes"`
	ModTime     time.Time `json:"mod_time"`
	AgeSeconds  int64     `json:"age_seconds"`
}

// RegisterDiagnostics 暴露 /-/status 与 /-/cache，供运维确认当前配置与缓存内容；
// DELETE /-/cache/:fingerprint 可单独清除某个条目。
func RegisterDiagnostics(app *fiber.App, diag Diagnostics) {
	if app == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(encodeStatus(diag))
	})

	app.Get("/-/cache", func(c fiber.Ctx) error {
		if diag.Store == nil || !diag.CacheEnabled {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cache_disabled"})
		}
		entries, err := diag.Store.List(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_list_failed"})
		}
		now := time.Now()
		var total int64
		items := make([]entryPayload, 0, len(entries))
		for _, e := range entries {
			total += e.SizeBytes
			items = append(items, entryPayload{
				Fingerprint: e.Fingerprint,
				SizeBytes:   e.SizeBytes,
				ModTime:     e.ModTime.UTC(),
				AgeSeconds:  int64(now.Sub(e.ModTime) / time.Second),
			})
		}
		return c.JSON(fiber.Map{
			"count":       len(items),
			"total_bytes": total,
			"entries":     items,
		})
	})

	app.Delete("/-/cache/:fingerprint", func(c fiber.Ctx) error {
		if diag.Store == nil || !diag.CacheEnabled {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cache_disabled"})
		}
		fp := c.Params("fingerprint")
		if !fingerprint.Valid(fp) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_fingerprint"})
		}
		if err := diag.Store.Remove(c.Context(), fp); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_remove_failed"})
		}
		return c.JSON(fiber.Map{"removed": fp})
	})
}

func encodeStatus(diag Diagnostics) statusPayload {
	serialized := diag.Options.Serialize()
	payload := statusPayload{
		Version: version.Full(),
		BaseDir: diag.BaseDir,
		Cache: cachePayload{
			Enabled:       diag.CacheEnabled,
			MaxAgeSeconds: int64(diag.MaxAge / time.Second),
			EvictionRate:  diag.EvictionRate,
		},
		Compiler: compilerPayload{
			Style:        string(diag.Options.Style),
			Syntax:       string(diag.Options.Syntax),
			Debug:        diag.Options.Debug,
			LineComments: diag.Options.LineComments,
			Functions:    diag.Options.FunctionNames(),
			Serialized:   serialized,
			Digest:       fmt.Sprintf("%016x", xxhash.Sum64String(serialized)),
		},
	}
	if diag.CacheEnabled {
		payload.Cache.Dir = diag.CacheDir
	}
	return payload
}
