package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/planpanel/internal"
	"github.com/starford/planpanel/internal/checklist"
	pkgconfig "github.com/starford/planpanel/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	load := pkgconfig.LoadOptional[internal.Config]
	if cmd.IsSet("config") {
		load = pkgconfig.Load[internal.Config]
	}
	if err := load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runWith(entry func(context.Context, ...internal.Option) error, name string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithVersion(version),
		}
		if err := entry(ctx, opts...); err != nil {
			return fmt.Errorf("%s run error: %w", name, err)
		}
		return nil
	}
}

func format(_ context.Context, _ *cli.Command) error {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	_, err = io.WriteString(os.Stdout, checklist.Format(string(data)))
	return err
}

func main() {
	cmd := &cli.Command{
		Name:    "planpanel",
		Usage:   "Daily plan checklists stored in a Markdown vault, with a terminal panel and an MCP server",
		Version: version,
		Action:  runWith(internal.RunPanel, "panel"),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the plan HTTP service over the vault",
				Action: runWith(internal.Run, "serve"),
			},
			{
				Name:   "panel",
				Usage:  "Open the terminal planning panel",
				Action: runWith(internal.RunPanel, "panel"),
			},
			{
				Name:   "mcp",
				Usage:  "Serve the plan tools over MCP stdio",
				Action: runWith(internal.RunMCP, "mcp"),
			},
			{
				Name:   "format",
				Usage:  "Format stdin as a checklist and print it",
				Action: format,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
