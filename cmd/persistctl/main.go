// Command persistctl imports, lists, searches and deletes records in a
// persist storage backend.
//
//	persistctl --config persist.yaml import people.json
//	persistctl list --limit 10 --sort -age --filter 'role=admin'
//	persistctl delete 3 4
//	persistctl --class document import notes.json
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/kbukum/persist/config"
	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/gateway"
	"github.com/kbukum/persist/logger"
	"github.com/kbukum/persist/observability"
	"github.com/kbukum/persist/storage"

	_ "github.com/kbukum/persist/storage/memory"
	_ "github.com/kbukum/persist/storage/redisstore"
	_ "github.com/kbukum/persist/storage/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	configFile := fs.StringP("config", "c", "", "path to the config file")
	envFile := fs.String("env-file", "", "path to a .env file")
	className := fs.String("class", entity.RecordClass.Name(), "entity class records are read and written as (record, document)")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr, fs)
		return 2
	}
	cmd, ok := lookup(fs.Arg(0))
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", fs.Arg(0))
		usage(stderr, fs)
		return 2
	}

	var a *app
	if !cmd.standalone {
		var err error
		if a, err = newApp(ctx, *configFile, *envFile, *className, stderr); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", serviceName, err)
			return 1
		}
		defer a.Close(ctx)
	}

	if err := cmd.run(ctx, a, fs.Args()[1:], stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		if a != nil {
			logger.Debug("command failed", logger.Fields(logger.FieldOperation, cmd.name, logger.FieldError, err.Error()))
		}
		fmt.Fprintf(stderr, "%s %s: %v\n", serviceName, cmd.name, err)
		return 1
	}
	return 0
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s [flags] <command> [args]\n\nCommands:\n", serviceName)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "\nFlags:\n%s", fs.FlagUsages())
}

// app holds what every command needs.
type app struct {
	cfg      Config
	log      *logger.Logger
	store    storage.Store
	gw       *gateway.Gateway
	shutdown []func(context.Context) error
}

func newApp(ctx context.Context, configFile, envFile, className string, stderr io.Writer) (*app, error) {
	class, err := lookupClass(className)
	if err != nil {
		return nil, err
	}

	var opts []config.LoaderOption
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}

	a := &app{}
	if err := config.LoadConfig(serviceName, &a.cfg, opts...); err != nil {
		return nil, err
	}
	a.log = logger.InitWithWriter(stderr, &a.cfg.Logging, a.cfg.Name)

	var metrics *observability.Metrics
	if a.cfg.Observability.Enabled {
		tp, err := observability.InitTracer(ctx, a.cfg.Observability, a.log)
		if err != nil {
			return nil, err
		}
		a.shutdown = append(a.shutdown, tp.Shutdown)

		mp, err := observability.InitMeter(ctx, a.cfg.Observability, a.log)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.shutdown = append(a.shutdown, mp.Shutdown)

		if metrics, err = observability.NewMetrics(observability.Meter(a.cfg.Name)); err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	store, err := storage.Open(ctx, a.cfg.Storage, logger.Get(logger.ComponentStorage))
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.store = store

	a.gw, err = gateway.New(class, store,
		gateway.WithLogger(logger.Get(logger.ComponentGateway)),
		gateway.WithIDField(a.cfg.Storage.IDField),
		gateway.WithTracing(a.cfg.Observability.Enabled),
		gateway.WithMetrics(metrics),
	)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// Close releases the store and flushes telemetry.
func (a *app) Close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("failed to close storage", logger.Fields(logger.FieldError, err.Error()))
		}
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			a.log.Warn("failed to flush telemetry", logger.Fields(logger.FieldError, err.Error()))
		}
	}
}
