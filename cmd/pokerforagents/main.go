package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/pokerforagents/internal/manager"
	"github.com/lox/pokerforagents/internal/server"
	"github.com/lox/pokerforagents/internal/session"
	"github.com/lox/pokerforagents/internal/store"

	hubpkg "github.com/lox/pokerforagents/internal/hub"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version   kong.VersionFlag `short:"v" help:"Show version"`
	Config    string           `kong:"default='pokerforagents.hcl',help='Path to HCL config file'"`
	Addr      string           `kong:"help='Listen address, overrides config'"`
	LogLevel  string           `kong:"help='Log level: debug, info, warn, error'"`
	DB        string           `kong:"help='SQLite database path, overrides config'"`
	Ephemeral bool             `kong:"help='Run with an in-memory store, nothing persists'"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pokerforagents"),
		kong.Description("Server-authoritative No-Limit Hold'em for autonomous agents"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	ctx.FatalIfErrorf(run(&cli))
}

func run(cli *CLI) error {
	cfg, err := server.LoadConfig(cli.Config)
	if err != nil {
		return err
	}
	if cli.LogLevel != "" {
		cfg.Server.LogLevel = cli.LogLevel
	}
	if cli.Addr != "" {
		host, port, err := net.SplitHostPort(cli.Addr)
		if err != nil {
			return fmt.Errorf("invalid --addr %q: %w", cli.Addr, err)
		}
		cfg.Server.Address = host
		cfg.Server.Port, err = strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid --addr port %q: %w", port, err)
		}
	}
	if cli.DB != "" {
		cfg.Server.DBPath = cli.DB
	}
	if cli.Ephemeral {
		cfg.Server.Ephemeral = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if lvl, err := log.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	var st store.Store
	if cfg.Server.Ephemeral {
		logger.Warn("running with ephemeral in-memory store")
		st = store.NewMemory()
	} else {
		st, err = store.OpenSQLite(cfg.Server.DBPath)
		if err != nil {
			return err
		}
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := quartz.NewReal()
	sessions := session.NewRegistry(clock, cfg.SessionWindow())
	h := hubpkg.New(logger)
	mgr := manager.New(clock, st, h, sessions, manager.Options{
		NextHandDelay:          cfg.NextHandDelay(),
		GraceTimeout:           cfg.GraceTimeout(),
		DefaultActionTimeoutMS: cfg.Defaults.ActionTimeoutMS,
	}, logger)
	if err := mgr.Load(ctx); err != nil {
		return err
	}

	srv := server.New(cfg, st, sessions, mgr, logger)
	return srv.Run(ctx)
}
