package styles

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/stylecache/internal/cache"
	"github.com/any-hub/stylecache/internal/compiler"
	"github.com/any-hub/stylecache/internal/fingerprint"
	"github.com/any-hub/stylecache/internal/logging"
	"github.com/any-hub/stylecache/internal/server"
)

const (
	contentTypeCSS = "text/css; charset=utf-8"
	headerCacheHit = "X-Stylecache-Cache-Hit"
)

// forceParams 中任一查询参数出现（值无关）即触发强制重置。
var forceParams = []string{"clear", "reset", "force"}

// Options 描述处理器的运行参数，启动时由配置构建。
type Options struct {
	BaseDir      string
	CacheEnabled bool
	MaxAge       time.Duration
}

// Handler 负责 orchestrate “解析 → 指纹 → 协商 → 清理 → 命中/渲染 → 响应” 的全流程。
// 除只读配置外不持有跨请求状态，磁盘目录是唯一共享资源。
type Handler struct {
	compiler     *compiler.Compiler
	fingerprints fingerprint.Builder
	store        cache.Store
	evictor      cache.Evictor
	opts         Options
	logger       *logrus.Logger
	now          func() time.Time
}

// NewHandler 组装处理器；store 为空或 CacheEnabled 关闭时不使用磁盘缓存与缓存头。
func NewHandler(c *compiler.Compiler, store cache.Store, evictor cache.Evictor, opts Options, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if store == nil {
		opts.CacheEnabled = false
	}
	return &Handler{
		compiler:     c,
		fingerprints: fingerprint.Builder{},
		store:        store,
		evictor:      evictor,
		opts:         opts,
		logger:       logger,
		now:          time.Now,
	}
}

// outcome 是一次请求的最终结果，错误也会在这里转换为样式文本。
type outcome struct {
	status      int
	body        []byte
	etag        string
	cacheHit    bool
	file        string
	forced      bool
	err         error
	cacheable   bool
	notModified bool
}

// Handle 执行完整的请求流程，任何失败都以可见的错误样式返回，状态码仍为 200。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := h.process(ctx, c)
	if out.err != nil {
		out = outcome{
			status: fiber.StatusOK,
			body:   ErrorStylesheet(out.err),
			file:   out.file,
			forced: out.forced,
			err:    out.err,
		}
	}

	h.logResult(out, requestID, started)
	return h.write(c, out)
}

func (h *Handler) process(ctx context.Context, c fiber.Ctx) outcome {
	out := outcome{forced: isForced(c)}

	file, err := h.resolveFile(c)
	if err != nil {
		out.err = err
		return out
	}
	out.file = file

	tree, err := h.compiler.Parse(file)
	if err != nil {
		out.err = err
		return out
	}

	fp, err := h.fingerprints.Build(tree.Root, tree.Imports(), h.compiler.Options())
	if err != nil {
		out.err = err
		return out
	}
	out.etag = fp

	if !h.opts.CacheEnabled {
		body, err := h.compiler.Render(tree)
		if err != nil {
			out.err = err
			return out
		}
		out.status = fiber.StatusOK
		out.body = body
		return out
	}
	out.cacheable = true

	clientTag := c.Get(fiber.HeaderIfNoneMatch)
	if IsFreshForClient(normalizeETag(clientTag), clientTag != "", fp) {
		out.status = fiber.StatusNotModified
		out.notModified = true
		return out
	}

	h.sweep(ctx, out.forced)

	if !out.forced {
		if body, ok := h.lookup(ctx, fp); ok {
			out.status = fiber.StatusOK
			out.body = body
			out.cacheHit = true
			return out
		}
	}

	body, err := h.compiler.Render(tree)
	if err != nil {
		out.err = err
		return out
	}
	h.save(ctx, fp, body)

	out.status = fiber.StatusOK
	out.body = body
	return out
}

// resolveFile 优先使用 file 查询参数，缺省时以 .scss/.css 结尾的请求路径作为源文件。
func (h *Handler) resolveFile(c fiber.Ctx) (string, error) {
	raw := strings.TrimSpace(c.Query("file"))
	if raw == "" {
		reqPath := c.Path()
		switch strings.ToLower(path.Ext(reqPath)) {
		case ".scss", ".css":
			raw = reqPath
		}
	}
	if raw == "" {
		return "", &BadRequestError{Reason: "missing file parameter"}
	}
	if strings.ContainsRune(raw, 0) {
		return "", &BadRequestError{Reason: "invalid file parameter"}
	}

	base := h.opts.BaseDir
	if base == "" {
		base = "."
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	rel := filepath.Clean(filepath.FromSlash(strings.TrimLeft(raw, "/")))
	full := filepath.Join(base, rel)
	if !withinDir(base, full) {
		return "", &BadRequestError{Reason: "file outside base directory: " + raw}
	}
	return full, nil
}

func withinDir(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (h *Handler) sweep(ctx context.Context, forced bool) {
	result, ran, err := h.evictor.MaybeSweep(ctx, forced)
	if !ran {
		return
	}
	fields := logging.SweepFields(result, forced)
	if err != nil {
		h.logger.WithFields(fields).WithError(err).Warn("cache_evict_failed")
		return
	}
	for _, failed := range result.Failed {
		h.logger.WithFields(logrus.Fields{
			"action": "cache_sweep",
			"path":   failed.Path,
		}).WithError(failed.Err).Warn("cache_evict_failed")
	}
	h.logger.WithFields(fields).Debug("cache_swept")
}

func (h *Handler) lookup(ctx context.Context, fp string) ([]byte, bool) {
	result, err := h.store.Get(ctx, fp)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrNotFound):
		return nil, false
	default:
		h.logger.WithError(err).
			WithFields(logrus.Fields{"action": "cache_get", "fingerprint": fp}).
			Warn("cache_get_failed")
		return nil, false
	}
	defer result.Reader.Close()

	body, err := io.ReadAll(result.Reader)
	if err != nil {
		h.logger.WithError(err).
			WithFields(logrus.Fields{"action": "cache_get", "fingerprint": fp}).
			Warn("cache_read_failed")
		return nil, false
	}
	return body, true
}

func (h *Handler) save(ctx context.Context, fp string, body []byte) {
	if _, err := h.store.Put(ctx, fp, bytes.NewReader(body), cache.PutOptions{ModTime: h.now()}); err != nil {
		werr := &CacheWriteError{Fingerprint: fp, Err: err}
		h.logger.WithError(werr).
			WithFields(logrus.Fields{"action": "cache_put", "fingerprint": fp}).
			Warn("cache_write_failed")
	}
}

func (h *Handler) write(c fiber.Ctx, out outcome) error {
	if out.notModified {
		c.Status(fiber.StatusNotModified)
		return nil
	}

	c.Set(fiber.HeaderContentType, contentTypeCSS)
	if out.cacheable {
		maxAge := h.opts.MaxAge
		c.Set(fiber.HeaderExpires, h.now().Add(maxAge).UTC().Format(http.TimeFormat))
		c.Set(fiber.HeaderPragma, "cache")
		c.Set(fiber.HeaderCacheControl, "max-age="+strconv.FormatInt(int64(maxAge/time.Second), 10))
		c.Set(fiber.HeaderETag, quoteETag(out.etag))
		c.Set(headerCacheHit, strconv.FormatBool(out.cacheHit))
	}
	c.Status(out.status)

	if c.Method() == fiber.MethodHead {
		c.Response().Header.SetContentLength(len(out.body))
		return nil
	}
	return c.Send(out.body)
}

func (h *Handler) logResult(out outcome, requestID string, started time.Time) {
	fields := logging.RequestFields(out.file, out.etag, out.cacheHit, out.forced)
	fields["action"] = "compile"
	fields["status"] = out.status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if out.err != nil {
		fields["error"] = out.err.Error()
		fields["error_kind"] = errorKind(out.err)
		h.logger.WithFields(fields).Error("stylesheet_failed")
		return
	}
	h.logger.WithFields(fields).Info("stylesheet_served")
}

func errorKind(err error) string {
	var (
		badRequest *BadRequestError
		notFound   *fingerprint.FileNotFoundError
		compileErr *compiler.CompileError
	)
	switch {
	case errors.As(err, &badRequest):
		return "bad_request"
	case errors.As(err, &notFound):
		return "file_not_found"
	case errors.As(err, &compileErr):
		return "compile"
	default:
		return "internal"
	}
}

func isForced(c fiber.Ctx) bool {
	args := c.Request().URI().QueryArgs()
	for _, name := range forceParams {
		if args.Has(name) {
			return true
		}
	}
	return false
}
