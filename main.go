package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/stylecache/internal/cache"
	"github.com/any-hub/stylecache/internal/compiler"
	"github.com/any-hub/stylecache/internal/config"
	"github.com/any-hub/stylecache/internal/logging"
	"github.com/any-hub/stylecache/internal/server"
	"github.com/any-hub/stylecache/internal/server/routes"
	"github.com/any-hub/stylecache/internal/styles"
	"github.com/any-hub/stylecache/internal/version"
)

// configEnvVar 可覆盖默认配置路径，优先级低于 --config。
const configEnvVar = "STYLECACHE_CONFIG"

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	compilerOpts, err := cfg.CompilerOptions()
	if err != nil {
		fmt.Fprintf(stdErr, "编译配置无效: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["base_dir"] = cfg.Global.BaseDir
		fields["cache"] = cfg.Global.CacheMode()
		fields["compiler"] = compilerOpts.Serialize()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	app, err := buildApp(cfg, compilerOpts, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["base_dir"] = cfg.Global.BaseDir
	fields["cache"] = cfg.Global.CacheMode()
	fields["cache_dir"] = cfg.Global.CacheDir
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(app, cfg.Global.ListenPort, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildApp 遵循“编译器 → 磁盘缓存 → 清理策略 → 样式处理器 → Fiber”顺序组装服务，
// 所有请求共享同一份只读配置与缓存目录。
func buildApp(cfg *config.Config, compilerOpts compiler.Options, logger *logrus.Logger) (*fiber.App, error) {
	comp := compiler.New(compilerOpts, logger)
	maxAge := cfg.Global.MaxAge.DurationValue()

	var (
		store   cache.Store
		evictor cache.Evictor
	)
	if cfg.Global.CacheEnabled {
		s, err := cache.NewStore(cfg.Global.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
		}
		store = s
		evictor = cache.NewEvictor(store, maxAge, cfg.Global.EvictionRate)
	}

	handler := styles.NewHandler(comp, store, evictor, styles.Options{
		BaseDir:      cfg.Global.BaseDir,
		CacheEnabled: cfg.Global.CacheEnabled,
		MaxAge:       maxAge,
	}, logger)

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Handler:    handler,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterDiagnostics(app, routes.Diagnostics{
		Store:        store,
		Options:      compilerOpts,
		BaseDir:      cfg.Global.BaseDir,
		CacheEnabled: cfg.Global.CacheEnabled,
		CacheDir:     cfg.Global.CacheDir,
		MaxAge:       maxAge,
		EvictionRate: cfg.Global.EvictionRate,
	})
	return app, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("stylecache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 STYLECACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv(configEnvVar)
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(app *fiber.App, port int, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
