package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/andreazorzetto/yh/highlight"
	"github.com/hashicorp/go-multierror"
	"github.com/hokaccha/go-prettyjson"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"gopkg.in/yaml.v3"

	sdk "go.opentelemetry.io/otel/sdk/metric"

	"github.com/looplj/todohub/conf"
	"github.com/looplj/todohub/internal/build"
	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/metrics"
	"github.com/looplj/todohub/internal/server"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			handleConfigCommand()
			return
		case "version", "--version", "-v":
			showVersion()
			return
		case "help", "--help", "-h":
			showHelp()
			return
		case "build-info":
			showBuildInfo()
			return
		}
	}

	startServer()
}

func showBuildInfo() {
	fmt.Print(build.GetBuildInfo())
}

type logger struct{}

func (l *logger) LogEvent(event fxevent.Event) {
	log.Debug(context.Background(), "fx event", log.Any("event", event))
}

func loadConfig() (conf.Config, error) {
	config, err := conf.Load()
	if err != nil {
		return conf.Config{}, err
	}

	if err := config.Validate(); err != nil {
		return conf.Config{}, err
	}

	return config, nil
}

func startServer() {
	server.Run(
		fx.WithLogger(func() fxevent.Logger {
			return &logger{}
		}),
		fx.Provide(loadConfig),
		fx.Provide(metrics.NewProvider),
		fx.Invoke(func(lc fx.Lifecycle, server *server.Server, provider *sdk.MeterProvider) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if provider != nil {
						return metrics.SetupMetrics(provider, server.Config.Name)
					}

					return nil
				},
				OnStop: func(ctx context.Context) error {
					if provider != nil {
						return provider.Shutdown(ctx)
					}

					return nil
				},
			})
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						if err := server.Run(); err != nil {
							log.Error(context.Background(), "server run error:", log.Cause(err))
							os.Exit(1)
						}
					}()

					return nil
				},
				OnStop: func(ctx context.Context) error {
					if err := server.Shutdown(ctx); err != nil {
						log.Error(context.Background(), "server shutdown error:", log.Cause(err))
					}

					return nil
				},
			})
		}),
	)
}

const configUsage = "Usage: todohub config <preview|validate|get>"

func handleConfigCommand() {
	if len(os.Args) < 3 {
		fmt.Println(configUsage)
		os.Exit(1)
	}

	switch os.Args[2] {
	case "preview":
		configPreview()
	case "validate":
		configValidate()
	case "get":
		configGet()
	default:
		fmt.Println(configUsage)
		os.Exit(1)
	}
}

func configPreview() {
	format := "yml"

	for i := 3; i < len(os.Args); i++ {
		if (os.Args[i] == "--format" || os.Args[i] == "-f") && i+1 < len(os.Args) {
			format = os.Args[i+1]
		}
	}

	config, err := conf.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	output, err := renderConfig(config, format)
	if err != nil {
		fmt.Printf("Failed to preview config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)
}

func renderConfig(config conf.Config, format string) (string, error) {
	switch format {
	case "json":
		b, err := prettyjson.Marshal(config)
		if err != nil {
			return "", err
		}

		return string(b), nil
	case "yml", "yaml":
		b, err := yaml.Marshal(config)
		if err != nil {
			return "", err
		}

		return highlight.Highlight(bytes.NewBuffer(b))
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func configValidate() {
	config, err := conf.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	problems := validateConfig(config)
	if len(problems) == 0 {
		fmt.Println("Configuration is valid!")
		return
	}

	fmt.Println("Configuration validation failed:")

	for _, p := range problems {
		fmt.Printf("  - %s\n", p)
	}

	os.Exit(1)
}

func validateConfig(config conf.Config) []string {
	err := config.Validate()
	if err == nil {
		return nil
	}

	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		problems = append(problems, e.Error())
	}

	return problems
}

var configKeys = []struct {
	key   string
	help  string
	value func(conf.Config) any
}{
	{"server.port", "Server port number", func(c conf.Config) any { return c.APIServer.Port }},
	{"server.name", "Server name", func(c conf.Config) any { return c.APIServer.Name }},
	{"server.debug", "Server debug mode", func(c conf.Config) any { return c.APIServer.Debug }},
	{"db.dialect", "Database dialect", func(c conf.Config) any { return c.DB.Dialect }},
	{"db.dsn", "Database DSN", func(c conf.Config) any { return c.DB.DSN }},
	{"cache.mode", "Cache mode", func(c conf.Config) any { return c.Cache.Mode }},
	{"auth.base_url", "Public url used in mail links", func(c conf.Config) any { return c.Auth.BaseURL }},
	{"mail.provider", "Mail provider", func(c conf.Config) any { return c.Mail.Provider }},
	{"metrics.enabled", "Metrics export", func(c conf.Config) any { return c.Metrics.Enabled }},
}

func configGet() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: todohub config get <key>")
		fmt.Println("")
		fmt.Println("Available keys:")

		for _, k := range configKeys {
			fmt.Printf("  %-16s %s\n", k.key, k.help)
		}

		os.Exit(1)
	}

	value, ok := configValue(os.Args[3])
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", os.Args[3])
		os.Exit(1)
	}

	fmt.Println(value)
}

func configValue(key string) (any, bool) {
	config, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	for _, k := range configKeys {
		if k.key == key {
			return k.value(config), true
		}
	}

	return nil, false
}

func showHelp() {
	fmt.Println("todohub, a multi-tenant todo service")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  todohub                    Start the server (default)")
	fmt.Println("  todohub config preview     Preview configuration")
	fmt.Println("  todohub config validate    Validate configuration")
	fmt.Println("  todohub config get <key>   Get a specific config value")
	fmt.Println("  todohub version            Show version")
	fmt.Println("  todohub build-info         Show build information")
	fmt.Println("  todohub help               Show this help message")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -f, --format FORMAT       Output format for config preview (yml, json)")
}

func showVersion() {
	fmt.Println(build.GetBuildInfo().Version)
}
