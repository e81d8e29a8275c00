package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ivoronin/simdog/internal/bktree"
	"github.com/ivoronin/simdog/internal/cache"
	"github.com/ivoronin/simdog/internal/config"
	"github.com/ivoronin/simdog/internal/engine"
	"github.com/ivoronin/simdog/internal/fingerprint"
	"github.com/ivoronin/simdog/internal/types"
)

var errInterrupted = errors.New("scan interrupted")

// newScanCmd creates the scan subcommand. Flag values are read back through
// config.Load so that the config file and SIMDOG_* variables apply too.
func newScanCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Group files whose fingerprints lie within a distance of each other",
		Long: `Walks the given directories, fingerprints every eligible file and prints
groups of files whose fingerprints are at most --radius apart.

With the default simhash fingerprint and hamming metric, radius 0 finds files
with identical content sketches and small radii find near-duplicates.
Use --mode duplicate to fingerprint only files that share their size with
another file.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runScan(ctx, args, cfg, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringP("min-size", "m", config.DefaultMinSize, "Minimum file size (e.g., 100, 1K, 10M, 1G)")
	f.StringSliceP("exclude", "e", nil, "Wildcard patterns matched against full paths to exclude")
	f.StringSlice("exclude-dir", nil, "Directories to skip")
	f.StringSlice("ext", nil, "Only consider files with these extensions")
	f.Bool("recursive", true, "Descend into subdirectories")
	f.IntP("radius", "r", config.DefaultRadius, "Maximum fingerprint distance within a group")
	f.String("mode", config.DefaultMode, "Candidate selection: similar or duplicate")
	f.String("hash", config.DefaultHash, "Fingerprint: simhash or sha256")
	f.String("metric", config.DefaultMetric, "Distance metric: hamming or levenshtein")
	f.IntP("workers", "w", 0, "Number of parallel fingerprint workers (default: number of CPUs)")
	f.Bool("cache", false, "Cache fingerprints in $XDG_CACHE_HOME/simdog/fingerprints.db")
	f.String("cache-file", "", "Path to fingerprint cache file (enables caching)")
	f.Bool("no-progress", false, "Disable progress output")
	f.BoolP("verbose", "v", false, "Enable debug logging")

	return cmd
}

// newLogger creates the stderr logger used by all phases.
func newLogger(verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: verbose,
		Prefix:          "simdog",
	})
}

// runScan builds the engine from cfg, runs it and prints the groups to out.
func runScan(ctx context.Context, paths []string, cfg *config.Config, out io.Writer) error {
	minSize, err := parseSize(cfg.MinSize)
	if err != nil {
		return fmt.Errorf("invalid --min-size: %w", err)
	}
	mode, err := engine.ParseMode(cfg.Mode)
	if err != nil {
		return fmt.Errorf("invalid --mode: %w", err)
	}
	metric, err := bktree.MetricByName(cfg.Metric)
	if err != nil {
		return fmt.Errorf("invalid --metric: %w", err)
	}

	fsys := afero.NewOsFs()
	hasher, err := fingerprint.ByName(cfg.Hash, fsys)
	if err != nil {
		return fmt.Errorf("invalid --hash: %w", err)
	}

	logger := newLogger(cfg.Verbose)

	hashCache, err := cache.Open(cfg.CacheFile)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() {
		if err := hashCache.Close(); err != nil {
			logger.Error("close cache", "err", err)
		}
	}()

	opts := []engine.Option{
		engine.WithFs(fsys),
		engine.WithLogger(logger),
		engine.WithHasher(cache.Wrap(hasher, hashCache)),
		engine.WithMetric(metric),
		engine.WithProgress(!cfg.NoProgress),
	}
	if cfg.Workers > 0 {
		opts = append(opts, engine.WithWorkers(cfg.Workers))
	}
	eng := engine.New(opts...)

	err = eng.Configure(engine.Config{
		Roots:            paths,
		ExcludedDirs:     cfg.ExcludeDirs,
		ExcludedPatterns: cfg.Exclude,
		Recursive:        cfg.Recursive,
		MinSize:          minSize,
		Extensions:       cfg.Extensions,
		Radius:           cfg.Radius,
		Mode:             mode,
	})
	if err != nil {
		return err
	}

	outcome, err := eng.Run(ctx)
	if err != nil {
		return err
	}
	if outcome.Status == engine.StatusStopped {
		return errInterrupted
	}

	printGroups(out, outcome.Groups)
	return nil
}

// printGroups writes one block per group: a header with the shared seed key
// followed by the member paths and sizes.
func printGroups(w io.Writer, groups types.Groups) {
	for i, g := range groups.Items() {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "Group %d: %d files, key %s\n", i+1, g.Entries.Len(), shortKey(g.Key))
		for _, e := range g.Entries.Items() {
			_, _ = fmt.Fprintf(w, "  %10s  %s\n", humanize.IBytes(e.Size), e.Path)
		}
	}
}
