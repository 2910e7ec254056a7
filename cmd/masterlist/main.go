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

	"golang.org/x/sync/errgroup"

	"github.com/varko/masterlist/internal/api"
	"github.com/varko/masterlist/internal/config"
	"github.com/varko/masterlist/internal/dashboard"
	"github.com/varko/masterlist/internal/output"
	"github.com/varko/masterlist/internal/server"
	"github.com/varko/masterlist/internal/stats"
	"github.com/varko/masterlist/internal/store"
	"github.com/varko/masterlist/internal/tracing"
)

const progressInterval = time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runStoreMaintenance handles the one-shot --import-servers and
// --export-servers actions. Import seeds the store and lets the server
// start; export writes the list and reports done so the process exits.
func runStoreMaintenance(cfg *config.Config, st *store.Store, out io.Writer) (done bool, err error) {
	if cfg.ImportPath != "" {
		added, skipped, err := st.ImportFile(cfg.ImportPath)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Imported %d servers (%d skipped) from %s\n", added, skipped, cfg.ImportPath)
	}
	if cfg.ExportPath != "" {
		if err := st.ExportFile(cfg.ExportPath); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Exported %d servers to %s\n", st.Count(false), cfg.ExportPath)
		return true, nil
	}
	return false, nil
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		provider.Shutdown(shutdownCtx)
	}()

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("opening store %s: %w", cfg.StorePath, err)
	}
	defer st.RemoveLockFile()

	if done, err := runStoreMaintenance(cfg, st, os.Stdout); done || err != nil {
		return err
	}

	collector := stats.NewCollector()

	var resolver server.Resolver
	if len(cfg.Categories) > 0 {
		resolver = server.NewStaticResolver(cfg.Categories)
	}

	udp, err := server.New(st, collector, server.Options{
		Addr:      cfg.ListenAddr,
		BatchSize: cfg.BatchSize,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Resolver:  resolver,
		LogErrors: cfg.LogErrors,
		ErrOut:    os.Stderr,
	})
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return udp.Serve(groupCtx)
	})

	if cfg.APIAddr != "" {
		admin, err := api.New(st, collector, provider.Tracer(), cfg.Refresh)
		if err != nil {
			return err
		}
		group.Go(func() error {
			return admin.ListenAndServe(groupCtx, cfg.APIAddr)
		})
	}

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboard.Options{
			ListenAddr:  cfg.ListenAddr,
			APIAddr:     cfg.APIAddr,
			StorePath:   cfg.StorePath,
			ConfigFile:  cfg.ConfigFile,
			ServerCount: func() int { return st.Count(true) },
			Refresh:     cfg.Refresh,
		}, cancel)
		if err != nil {
			return err
		}
		dash.Start()
		defer dash.Stop()
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.Dashboard {
		fmt.Fprintf(os.Stdout, "Serving %d servers on %s\n", st.Count(true), cfg.ListenAddr)
		progress = output.NewProgressReporter(collector, progressInterval, os.Stdout)
		progress.Start()
		defer func() {
			progress.Stop()
			fmt.Fprintln(os.Stdout)
		}()
	}

	err = group.Wait()

	summary := collector.Summary()
	if cfg.JSONOutput {
		if jsonErr := output.PrintJSONReport(os.Stdout, summary); jsonErr != nil {
			return jsonErr
		}
	} else if !cfg.Dashboard {
		output.PrintReport(os.Stdout, summary)
	}
	return err
}
