// waysomed - the waysome action daemon
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/waysome/waysome/action"
	"github.com/waysome/waysome/config"
	"github.com/waysome/waysome/message"
	"github.com/waysome/waysome/object"
	"github.com/waysome/waysome/server"
	"github.com/waysome/waysome/store/sqlite"
	"github.com/waysome/waysome/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to waysome.toml (default: search upward from the working directory)")
	addr := flag.String("addr", "", "Connect listen address, overrides the configuration")
	socket := flag.String("socket", "", "Unix socket path, overrides the configuration")
	verbose := flag.Int("v", -1, "Log verbosity, overrides the configuration")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: waysomed [options]\n\n")
		fmt.Fprintf(os.Stderr, "Runs the waysome action daemon.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  WAYSOME_ADDR, WAYSOME_SOCKET, WAYSOME_STORE, WAYSOME_STORE_PATH,\n")
		fmt.Fprintf(os.Stderr, "  WAYSOME_LOG_VERBOSITY, WAYSOME_OTEL_ENABLED, WAYSOME_OTEL_ENDPOINT, ...\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *socket != "" {
		cfg.Server.Socket = *socket
	}
	if *verbose >= 0 {
		cfg.Log.Verbosity = *verbose
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.FindAndLoad(wd)
}

func run(cfg *config.Config) error {
	var logPath *string
	if cfg.Log.Path != "" {
		logPath = &cfg.Log.Path
	}
	commonlog.Configure(cfg.Log.Verbosity, logPath)
	log := commonlog.GetLogger("waysome.daemon")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warningf("telemetry shutdown: %s", err)
		}
	}()

	objects := object.NewRegistry()
	store, err := openStore(cfg.Store, objects)
	if err != nil {
		return err
	}
	defer store.Close()

	manager := action.NewManager(
		action.WithStore(store),
		action.WithMaxDepth(cfg.Action.MaxDepth),
		action.WithRunStepLimit(cfg.Action.StepLimit),
	)
	srv := server.New(manager,
		server.WithWorkers(cfg.Server.Workers),
		server.WithQueue(cfg.Server.Queue),
		server.WithTimeout(cfg.Action.Timeout),
		server.WithObjectRegistry(objects),
	)
	defer srv.Stop()

	if cfg.Server.Addr == "" && cfg.Server.Socket == "" {
		return fmt.Errorf("no transport configured: set an address or a socket")
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Server.Addr != "" {
		g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Server.Addr) })
	}
	if cfg.Server.Socket != "" {
		g.Go(func() error { return srv.ListenSocket(gctx, cfg.Server.Socket) })
	}
	log.Infof("waysomed started (store: %s, %d commands)", cfg.Store.Driver, manager.Registry().Len())

	err = g.Wait()
	log.Info("waysomed stopped")
	return err
}

func openStore(cfg config.Store, objects *object.Registry) (action.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := sqlite.Open(cfg.Path, message.NewCodec(objects))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return action.NewMemoryStore(), nil
	}
}
