package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/andreazorzetto/yh/highlight"
	"github.com/hokaccha/go-prettyjson"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"gopkg.in/yaml.v3"

	"github.com/orbitgw/orbit/internal/app"
	"github.com/orbitgw/orbit/internal/config"
	"github.com/orbitgw/orbit/internal/httpapi"
	"github.com/orbitgw/orbit/internal/log"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			handleConfigCommand()
			return
		case "version", "--version", "-v":
			fmt.Println(version)
			return
		case "help", "--help", "-h":
			showHelp()
			return
		}
	}

	startServer()
}

func loadConfig() (config.Config, error) {
	return config.Load(os.Getenv("ORBIT_CONFIG_FILE"))
}

type fxLogger struct{}

func (l *fxLogger) LogEvent(event fxevent.Event) {
	log.Debug(context.Background(), "fx event", log.Any("event", event))
}

// startServer wires the collaborator graph with fx and blocks until the
// process receives a shutdown signal, grounded on axonhub's
// cmd/axonhub/main.go startServer (the same fx.New/fx.Lifecycle shape,
// adapted to ORBIT's single App object instead of axonhub's module split).
func startServer() {
	fxApp := fx.New(
		fx.WithLogger(func() fxevent.Logger { return &fxLogger{} }),
		fx.Provide(loadConfig),
		fx.Provide(app.New),
		fx.Provide(httpapi.New),
		fx.Invoke(func(lc fx.Lifecycle, srv *httpapi.Server, a *app.App) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						if err := srv.Run(); err != nil {
							log.Error(context.Background(), "server run error", log.Cause(err))
							os.Exit(1)
						}
					}()

					return nil
				},
				OnStop: func(ctx context.Context) error {
					if err := srv.Shutdown(ctx); err != nil {
						log.Error(ctx, "server shutdown error", log.Cause(err))
					}

					return a.Close()
				},
			})
		}),
	)

	fxApp.Run()
}

func handleConfigCommand() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: orbit config <preview>")
		os.Exit(1)
	}

	switch os.Args[2] {
	case "preview":
		configPreview()
	default:
		fmt.Println("Usage: orbit config <preview>")
		os.Exit(1)
	}
}

func configPreview() {
	format := "yml"

	for i := 3; i < len(os.Args); i++ {
		if os.Args[i] == "--format" || os.Args[i] == "-f" {
			if i+1 < len(os.Args) {
				format = os.Args[i+1]
			}
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var output string

	switch format {
	case "json":
		b, err := prettyjson.Marshal(cfg)
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}

		output = string(b)
	case "yml", "yaml":
		b, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}

		output, err = highlight.Highlight(bytes.NewBuffer(b))
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Printf("Unsupported format: %s\n", format)
		os.Exit(1)
	}

	fmt.Println(output)
}

func showHelp() {
	fmt.Println("ORBIT inference gateway")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  orbit                      Start the server (default)")
	fmt.Println("  orbit config preview       Preview the effective configuration")
	fmt.Println("  orbit version              Show version")
	fmt.Println("  orbit help                 Show this help message")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -f, --format FORMAT        Output format for config preview (yml, json)")
}
