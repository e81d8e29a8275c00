// Package engine orchestrates a similarity scan.
//
// # Pipeline
//
//	Configure(cfg)          validate roots, compile exclusions (hard errors)
//	    │
//	Run(ctx)
//	    ├──► scanner.Walk      eligible FileEntries, Info, warnings
//	    │                      (ctx polled per directory → Stopped)
//	    ├──► screener.Prune    size buckets, same-size statistics
//	    │                      (ModeDuplicate: only bucketed entries go on)
//	    ├──► fingerprint       bounded worker pool, results kept per entry
//	    ├──► bktree.Insert     serialized, in walk order
//	    └──► bktree.Group      clusters within Radius → Outcome
//
// # Concurrency
//
// Only fingerprinting runs in parallel. Workers write into a slice slot owned
// by their entry; the index is filled afterwards by the calling goroutine, so
// the tree never sees concurrent mutation and results are deterministic.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/ivoronin/simdog/internal/bktree"
	"github.com/ivoronin/simdog/internal/fingerprint"
	"github.com/ivoronin/simdog/internal/progress"
	"github.com/ivoronin/simdog/internal/scanner"
	"github.com/ivoronin/simdog/internal/screener"
	"github.com/ivoronin/simdog/internal/types"
)

// ErrNotConfigured is returned by Run before a successful Configure.
var ErrNotConfigured = errors.New("engine is not configured")

// Status tells whether a scan ran to completion.
type Status int

const (
	StatusCompleted Status = iota
	StatusStopped
)

func (s Status) String() string {
	if s == StatusStopped {
		return "stopped"
	}
	return "completed"
}

// Outcome is the result of Run. Groups and Info are meaningful only when
// Status is StatusCompleted.
type Outcome struct {
	Status Status
	Groups types.Groups
	Info   types.Info
}

// Engine finds groups of similar files. Configuration persists across runs;
// statistics and messages are reset at the start of every Run.
//
// An Engine is not safe for concurrent use.
type Engine struct {
	fs           afero.Fs
	logger       *log.Logger
	hasher       fingerprint.Hasher
	metric       bktree.Metric
	workers      int
	showProgress bool

	prep     *prepared
	info     types.Info
	messages types.Messages
}

// Option configures an Engine.
type Option func(*Engine)

// WithFs sets the filesystem scanned and hashed. Defaults to the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(e *Engine) { e.fs = fsys }
}

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithHasher sets the fingerprint function. Defaults to SimHash over the
// engine filesystem.
func WithHasher(h fingerprint.Hasher) Option {
	return func(e *Engine) { e.hasher = h }
}

// WithMetric sets the fingerprint distance. Defaults to Hamming.
func WithMetric(m bktree.Metric) Option {
	return func(e *Engine) { e.metric = m }
}

// WithWorkers sets the number of parallel fingerprint workers.
// Values below 1 are raised to 1.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = max(n, 1) }
}

// WithProgress enables progress display on stderr.
func WithProgress(enabled bool) Option {
	return func(e *Engine) { e.showProgress = enabled }
}

// New creates an unconfigured Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		fs:      afero.NewOsFs(),
		metric:  bktree.Hamming{},
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	if e.hasher == nil {
		e.hasher = fingerprint.NewSimHash(e.fs)
	}
	return e
}

// Configure validates cfg and makes it the configuration for later runs.
// On error the previous configuration is kept.
func (e *Engine) Configure(cfg Config) error {
	p, err := prepare(e.fs, cfg)
	if err != nil {
		return err
	}
	e.prep = p
	e.logger.Debug("configured", "roots", p.cfg.Roots, "excluded", p.cfg.ExcludedDirs,
		"patterns", p.cfg.ExcludedPatterns, "mode", p.cfg.Mode, "radius", p.cfg.Radius)
	return nil
}

// Info returns the statistics of the last run.
func (e *Engine) Info() types.Info { return e.info }

// Messages returns the warnings and errors of the last run.
func (e *Engine) Messages() types.Messages { return e.messages.Clone() }

// Run performs one scan. The context is polled once per directory during the
// walk and between fingerprint jobs; when it is done Run returns an Outcome
// with StatusStopped and the partial results are discarded.
func (e *Engine) Run(ctx context.Context) (*Outcome, error) {
	if e.prep == nil {
		return nil, ErrNotConfigured
	}
	cfg := e.prep.cfg
	e.info = types.Info{}
	e.messages = types.Messages{}
	start := time.Now()

	walkBar := progress.New(e.showProgress, -1)
	walker := scanner.New(e.fs, cfg.Roots, scanner.Options{
		Recursive:  cfg.Recursive,
		MinSize:    cfg.MinSize,
		Extensions: cfg.Extensions,
	}, e.prep.filter, e.logger, walkBar)

	res, err := walker.Walk(ctx)
	if errors.Is(err, scanner.ErrStopped) {
		e.logger.Info("scan stopped")
		return &Outcome{Status: StatusStopped}, nil
	}
	if err != nil {
		return nil, err
	}
	info := res.Info
	e.messages.Merge(res.Messages)

	buckets := screener.FromEntries(res.Entries)
	buckets.Prune(&info)
	walkBar.Finish(info)

	candidates := res.Entries
	if cfg.Mode == ModeDuplicate {
		candidates = buckets.Entries()
	}

	keys, hashErrs, stopped := e.fingerprint(ctx, candidates)
	if stopped {
		e.logger.Info("scan stopped")
		return &Outcome{Status: StatusStopped}, nil
	}

	index := bktree.New[*types.FileEntry](e.metric)
	for i, entry := range candidates {
		if hashErrs[i] != nil {
			e.warn("Cannot fingerprint %s: %v", entry.Path, hashErrs[i])
			info.HashErrors++
			continue
		}
		if err := index.Insert(keys[i], entry); err != nil {
			e.warn("Cannot index %s: %v", entry.Path, err)
			info.HashErrors++
			continue
		}
		info.HashedFiles++
	}

	e.logger.Debug("indexed fingerprints", "keys", index.Len(), "files", index.Size())

	clusters, err := bktree.Group(index, cfg.Radius)
	if err != nil {
		e.messages.Error("grouping failed: %v", err)
		return nil, fmt.Errorf("group fingerprints: %w", err)
	}

	groups := make([]types.Group, 0, len(clusters))
	grouped := make(map[*types.FileEntry]struct{})
	for _, c := range clusters {
		groups = append(groups, types.Group{Key: c.Seed, Entries: types.NewEntryList(c.Owners)})
		for _, o := range c.Owners {
			grouped[o] = struct{}{}
		}
	}
	info.GroupedFiles = len(grouped)
	info.Groups = len(groups)
	e.info = info

	e.logger.Info("scan completed",
		"folders", info.CheckedFolders, "files", info.CheckedFiles,
		"hashed", info.HashedFiles, "groups", info.Groups,
		"warnings", len(e.messages.Warnings), "elapsed", time.Since(start).Truncate(time.Millisecond))

	return &Outcome{Status: StatusCompleted, Groups: types.NewGroups(groups), Info: info}, nil
}

// fingerprint hashes entries on a bounded worker pool. Results are indexed
// like entries. stopped is true when ctx was done before all jobs ran.
func (e *Engine) fingerprint(ctx context.Context, entries []*types.FileEntry) (keys []types.Key, errs []error, stopped bool) {
	keys = make([]types.Key, len(entries))
	errs = make([]error, len(entries))
	bar := progress.New(e.showProgress && len(entries) > 0, int64(len(entries)))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			keys[i], errs[i] = e.hasher.Hash(entry)
			bar.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	bar.Finish(hashSummary(len(entries)))

	return keys, errs, ctx.Err() != nil
}

type hashSummary int

func (n hashSummary) String() string { return fmt.Sprintf("Fingerprinted %d files", int(n)) }

// warn records a warning and logs it.
func (e *Engine) warn(format string, args ...any) {
	e.messages.Warn(format, args...)
	e.logger.Warnf(format, args...)
}
