// Package ingest runs a batch of input paths through match, crop/resize and
// the content-addressed store on a bounded pool of workers. Every item is
// independent: a failure is reported for that item and the batch goes on.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Jesssullivan/snapcrop/internal/catalog"
	"github.com/Jesssullivan/snapcrop/internal/metrics"
	"github.com/Jesssullivan/snapcrop/internal/optimize"
	"github.com/Jesssullivan/snapcrop/internal/resolution"
	"github.com/Jesssullivan/snapcrop/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrDecode marks items whose input could not be read or decoded.
	ErrDecode = errors.New("decode failed")

	// ErrEncode marks items that failed while resizing, encoding or writing.
	ErrEncode = errors.New("encode failed")
)

// Outcome is the per-item result of a batch.
type Outcome int

const (
	Written Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return catalog.OutcomeWritten
	case Skipped:
		return catalog.OutcomeSkipped
	default:
		return catalog.OutcomeFailed
	}
}

// Result describes one processed input path.
type Result struct {
	Path     string
	Digest   string
	Outcome  Outcome
	Plan     optimize.Plan // set when the item was transformed
	Err      error
	Duration time.Duration
}

// Summary counts the outcomes of a batch.
type Summary struct {
	Written  int
	Skipped  int
	Failed   int
	Failures []Result
}

// Total is the number of items processed.
func (s *Summary) Total() int { return s.Written + s.Skipped + s.Failed }

// OK reports whether no item failed.
func (s *Summary) OK() bool { return s.Failed == 0 }

func (s *Summary) add(r Result) {
	switch r.Outcome {
	case Written:
		s.Written++
	case Skipped:
		s.Skipped++
	default:
		s.Failed++
		s.Failures = append(s.Failures, r)
	}
}

// Config holds the encoding and concurrency settings.
type Config struct {
	Format  optimize.Format
	Quality int
	Workers int // 0 means runtime.NumCPU()
}

// Ingester processes input paths against one candidate set.
type Ingester struct {
	store   *store.Store
	set     *resolution.CandidateSet
	cfg     Config
	runID   string
	log     zerolog.Logger
	journal *catalog.DB
	metrics *metrics.Batch
	prog    io.Writer
	flight  singleflight.Group
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger. The default discards events.
func WithLogger(l zerolog.Logger) Option { return func(ing *Ingester) { ing.log = l } }

// WithCatalog records every result in the journal.
func WithCatalog(db *catalog.DB) Option { return func(ing *Ingester) { ing.journal = db } }

// WithMetrics counts every result.
func WithMetrics(m *metrics.Batch) Option { return func(ing *Ingester) { ing.metrics = m } }

// WithProgress draws a progress line on w.
func WithProgress(w io.Writer) Option { return func(ing *Ingester) { ing.prog = w } }

// WithRunID overrides the generated run id.
func WithRunID(id string) Option { return func(ing *Ingester) { ing.runID = id } }

// New creates an Ingester writing into st. The candidate set is shared
// read-only by all workers.
func New(st *store.Store, set *resolution.CandidateSet, cfg Config, opts ...Option) *Ingester {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Format == "" {
		cfg.Format = optimize.PNG
	}
	ing := &Ingester{
		store: st,
		set:   set,
		cfg:   cfg,
		runID: uuid.NewString(),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(ing)
	}
	ing.log = ing.log.With().Str("run_id", ing.runID).Logger()
	if ing.metrics != nil {
		ing.metrics.SetCandidates(set.Len())
	}
	return ing
}

// RunID identifies this batch in logs and the journal.
func (ing *Ingester) RunID() string { return ing.runID }

// Run reads newline-delimited paths from src and processes them in
// parallel. Blank lines are ignored. The returned error is only for
// problems reading src or cancellation; item failures are in the Summary.
func (ing *Ingester) Run(ctx context.Context, src io.Reader) (*Summary, error) {
	sum := &Summary{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(int64(ing.cfg.Workers))
	prog := newProgress(ing.prog)

	ing.log.Info().
		Int("candidates", ing.set.Len()).
		Int("workers", ing.cfg.Workers).
		Str("output", ing.store.Dir()).
		Msg("ingest: batch started")

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		path := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer sem.Release(1)

			r := ing.Process(ctx, path)

			mu.Lock()
			sum.add(r)
			prog.update(sum)
			mu.Unlock()
		}(path)
	}
	wg.Wait()
	prog.finish(sum)

	ing.log.Info().
		Int("written", sum.Written).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Msg("ingest: batch finished")

	if err := sc.Err(); err != nil {
		return sum, fmt.Errorf("ingest: read paths: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

// Process runs one input path start to finish and reports the result to
// the logger, journal and metrics.
func (ing *Ingester) Process(ctx context.Context, path string) Result {
	start := time.Now()
	r := ing.process(path)
	r.Duration = time.Since(start)
	ing.report(ctx, r)
	return r
}

func (ing *Ingester) process(path string) Result {
	r := Result{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return failed(r, fmt.Errorf("%w: read: %w", ErrDecode, err))
	}
	r.Digest = store.Digest(data)

	has, err := ing.store.Has(r.Digest)
	if err != nil {
		return failed(r, fmt.Errorf("%w: %w", ErrEncode, err))
	}
	if has {
		r.Outcome = Skipped
		return r
	}

	// Identical inputs in one batch share a single transform; only the
	// goroutine that ran it reports Written.
	leader := false
	v, err, _ := ing.flight.Do(r.Digest, func() (any, error) {
		leader = true
		return ing.produce(data, r.Digest)
	})
	if err != nil {
		return failed(r, err)
	}
	p := v.(produced)
	if !leader || p.existed {
		r.Outcome = Skipped
		return r
	}
	r.Plan = p.plan
	r.Outcome = Written
	return r
}

type produced struct {
	plan    optimize.Plan
	existed bool
}

func (ing *Ingester) produce(data []byte, digest string) (produced, error) {
	// A duplicate that finished between our Has check and now.
	if has, err := ing.store.Has(digest); err == nil && has {
		return produced{existed: true}, nil
	}

	img, _, err := optimize.Decode(data)
	if err != nil {
		return produced{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	b := img.Bounds()
	target, err := ing.set.Match(b.Dx(), b.Dy())
	if err != nil {
		return produced{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	out, plan, err := optimize.Transform(img, target)
	if err != nil {
		return produced{}, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	ing.log.Debug().
		Str("digest", digest).
		Bool("clamped", plan.Clamped).
		Msgf("%dx%d -> %s -> %dx%d", b.Dx(), b.Dy(), target, plan.Output().X, plan.Output().Y)

	err = ing.store.Put(digest, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if err := optimize.Encode(bw, out, ing.cfg.Format, ing.cfg.Quality); err != nil {
			return err
		}
		return bw.Flush()
	})
	if err != nil {
		return produced{}, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return produced{plan: plan}, nil
}

func failed(r Result, err error) Result {
	r.Outcome = Failed
	r.Err = err
	return r
}

func (ing *Ingester) report(ctx context.Context, r Result) {
	switch r.Outcome {
	case Failed:
		ing.log.Warn().Err(r.Err).Str("path", r.Path).Msg("ingest: item failed")
	case Skipped:
		ing.log.Debug().Str("path", r.Path).Str("digest", r.Digest).Msg("ingest: already in output, skipping")
	default:
		ing.log.Debug().Str("path", r.Path).Str("file", ing.store.Name(r.Digest)).Msg("ingest: written")
	}

	if ing.metrics != nil {
		ing.metrics.Observe(r.Outcome.String(), r.Duration)
	}

	if ing.journal != nil {
		rec := &catalog.Record{
			RunID:   ing.runID,
			Path:    r.Path,
			Digest:  r.Digest,
			Outcome: r.Outcome.String(),
		}
		if r.Plan.Target.Width != 0 {
			rec.Candidate = r.Plan.Target.String()
			rec.Width, rec.Height = r.Plan.Output().X, r.Plan.Output().Y
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		// Finished items are journaled even when the batch is interrupted.
		if err := ing.journal.Record(context.WithoutCancel(ctx), rec); err != nil {
			ing.log.Warn().Err(err).Str("path", r.Path).Msg("ingest: journal write failed")
		}
	}
}
