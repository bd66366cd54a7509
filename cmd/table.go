package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/renholm/switchboard/internal/cachemanager"
	"github.com/renholm/switchboard/internal/config"
	"github.com/renholm/switchboard/internal/dispatcher"
	"github.com/renholm/switchboard/internal/journal"
	"github.com/renholm/switchboard/internal/manifest"
	"github.com/renholm/switchboard/internal/paths"
	"github.com/renholm/switchboard/internal/tracing"

	// Register builtin kernels so manifests can reference them by catalog name
	_ "github.com/renholm/switchboard/internal/kernels/arith"
	_ "github.com/renholm/switchboard/internal/kernels/text"
)

// resolveDataDir returns the directory holding the journal database and
// trace output.
// Resolution priority:
//  1. data_dir config setting
//  2. SWITCHBOARD_DATA_DIR environment variable
//  3. Current working directory
func resolveDataDir() string {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = os.Getenv("SWITCHBOARD_DATA_DIR")
	}
	return paths.ResolveDataDir(dataDir)
}

// tracingConfigFrom bridges the file configuration into the tracing
// package's config, deriving the trace file location from the data
// directory when none is set.
func tracingConfigFrom(tc config.TracingConfig, dataDir string) tracing.Config {
	filePath := tc.FilePath
	if filePath == "" && tc.Exporter == "file" {
		filePath = paths.TracesPath(dataDir)
	}
	return tracing.Config{
		Enabled:      tc.Enabled,
		Exporter:     tc.Exporter,
		FilePath:     filePath,
		OTLPEndpoint: tc.OTLPEndpoint,
		SampleRate:   tc.SampleRate,
		ServiceName:  "switchboard",
	}
}

// initTracing builds the trace provider for the process and installs it
// globally. Callers must Shutdown the provider before exit so batched
// spans reach the exporter.
func initTracing(dataDir string) (*tracing.Provider, error) {
	provider, err := tracing.NewProvider(tracingConfigFrom(cfg.Tracing, dataDir))
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	return provider, nil
}

// journalPathFrom returns the journal database location, preferring an
// explicit config path over the data directory default.
func journalPathFrom(jc config.JournalConfig, dataDir string) string {
	if jc.Path != "" {
		return jc.Path
	}
	return paths.JournalPath(dataDir)
}

// newDispatcher builds a dispatcher with the resolution cache the
// config asks for.
func newDispatcher() *dispatcher.Dispatcher {
	if !cfg.Cache.Enabled {
		return dispatcher.NewWithCache(nil)
	}
	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = cachemanager.DefaultExpiration
	}
	return dispatcher.NewWithCache(cachemanager.NewInMemoryCacheManager[string, dispatcher.Resolution](
		"dispatch", ttl, cachemanager.DefaultCleanupInterval))
}

// loadManifestFiles loads every configured manifest directory, in
// config order.
func loadManifestFiles(ctx context.Context) ([]manifest.File, error) {
	if err := config.ValidateManifestDirs(cfg.ManifestDirs); err != nil {
		return nil, err
	}

	var files []manifest.File
	for _, dir := range cfg.ManifestDirs {
		loaded, err := manifest.Load(ctx, os.DirFS(dir), ".")
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", dir, err)
		}
		files = append(files, loaded...)
	}
	return files, nil
}

// buildTable constructs a populated dispatch table: a dispatcher,
// optionally journaled, committed from every configured manifest
// directory. The returned cleanup releases the registrations and closes
// the journal database.
func buildTable(ctx context.Context, journaled bool) (*dispatcher.Dispatcher, func(), error) {
	d := newDispatcher()

	var db *journal.DB
	if journaled && cfg.Journal.Enabled {
		path := journalPathFrom(cfg.Journal, resolveDataDir())
		var err error
		db, err = journal.NewDB(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening journal: %w", err)
		}
		d.AddListener(journal.NewListener(db.Recorder()))
	}

	closeDB := func() {
		if db != nil {
			_ = db.Close()
		}
	}

	files, err := loadManifestFiles(ctx)
	if err != nil {
		closeDB()
		return nil, nil, err
	}

	set, err := manifest.Commit(ctx, d, files)
	if err != nil {
		closeDB()
		return nil, nil, err
	}

	cleanup := func() {
		set.Close()
		closeDB()
	}
	return d, cleanup, nil
}
