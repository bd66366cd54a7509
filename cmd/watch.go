package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/renholm/switchboard/internal/dispatcher"
	"github.com/renholm/switchboard/internal/journal"
	"github.com/renholm/switchboard/internal/log"
	"github.com/renholm/switchboard/internal/manifest"
	"github.com/renholm/switchboard/internal/pubsub"
	"github.com/renholm/switchboard/internal/tracing"
	"github.com/renholm/switchboard/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Serve the dispatch table and reload manifests on change",
	Long: `Build the dispatch table from the configured manifest directories
and keep it in sync: whenever a manifest file changes, the incoming
files are validated against a throwaway table first, then the old
registrations are released and the new ones committed.

A reload that fails validation leaves the previous table serving. With
journaling enabled (the default), every registration and release is
recorded and can be inspected later with 'switchboard ops:history'.

Example:
  switchboard watch                 # Watch the configured directories
  SWITCHBOARD_DEBUG=1 switchboard watch   # With debug logging`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	logCleanup, err := initLogging()
	if err != nil {
		return err
	}
	defer logCleanup()

	dataDir := resolveDataDir()
	log.Info(log.CatCLI, "resolved data dir", "path", dataDir)

	provider, err := initTracing(dataDir)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.ErrorErr(log.CatCLI, "error shutting down tracing", err)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	d := newDispatcher()

	if cfg.Journal.Enabled {
		db, err := journal.NewDB(journalPathFrom(cfg.Journal, dataDir))
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer func() { _ = db.Close() }()
		d.AddListener(journal.NewListener(db.Recorder()))
	}

	broker := pubsub.NewBroker[dispatcher.Registration]()
	defer broker.Close()
	d.AddListener(dispatcher.NewBrokerListener(broker))
	go drainRegistrationEvents(broker.Subscribe(ctx))

	tracer := provider.Tracer()

	// The initial build must succeed; after that, failed reloads keep
	// the previous table serving.
	current, err := reloadTable(ctx, tracer, d, nil, 0, "")
	if err != nil {
		return err
	}
	defer func() {
		if current != nil {
			current.Close()
		}
	}()

	w, err := watcher.New(watcher.Config{
		Dirs:        cfg.ManifestDirs,
		DebounceDur: cfg.Watch.Debounce,
	})
	if err != nil {
		return err
	}
	changes, err := w.Start()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	fmt.Printf("Serving %d operators from %s\n", current.Len(), strings.Join(cfg.ManifestDirs, ", "))
	fmt.Println("Watching for manifest changes. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	seq := 0
	for {
		select {
		case sig := <-sigCh:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			return nil
		case path, ok := <-changes:
			if !ok {
				return fmt.Errorf("watcher stopped unexpectedly")
			}
			seq++
			current, err = reloadTable(ctx, tracer, d, current, seq, path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
				log.ErrorErr(log.CatWatcher, "manifest reload failed", err, "path", path, "seq", seq)
				continue
			}
			fmt.Printf("Reloaded: %d operators (%s)\n", current.Len(), path)
		}
	}
}

// reloadTable loads the configured manifests and swaps them into d,
// releasing the old set only after the incoming files pass a dry-run.
// It returns the set now live in d: on a validation failure that is
// still old, and on a commit failure the table is left empty and the
// returned set is nil.
func reloadTable(ctx context.Context, tracer trace.Tracer, d *dispatcher.Dispatcher, old *manifest.Set, seq int, changed string) (*manifest.Set, error) {
	ctx, span := tracer.Start(ctx, "watch.reload")
	defer span.End()
	span.SetAttributes(attribute.Int(tracing.AttrReloadSeq, seq))
	if changed != "" {
		span.SetAttributes(attribute.String(tracing.AttrChangedPath, changed))
	}

	files, err := loadManifestFiles(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return old, err
	}
	if err := manifest.Check(ctx, files); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return old, err
	}

	if old != nil {
		old.Close()
	}
	set, err := manifest.Commit(ctx, d, files)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int(tracing.AttrOperatorCount, set.Len()))
	span.SetStatus(codes.Ok, "")
	return set, nil
}

// drainRegistrationEvents logs table mutations published by the broker.
// The subscription channel closes when the context is canceled or the
// broker shuts down.
func drainRegistrationEvents(events <-chan pubsub.Event[dispatcher.Registration]) {
	for ev := range events {
		log.Debug(log.CatDispatch, "table mutation",
			"event", string(ev.Type),
			"kind", string(ev.Payload.Kind),
			"operator", ev.Payload.Operator.String(),
			"key", ev.Payload.Key.String(),
		)
	}
}
