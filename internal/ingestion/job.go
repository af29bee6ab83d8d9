// Package ingestion implements the batch embedding job. It loads one page of
// shows from the catalog, embeds their descriptions in fixed-size batches and
// appends the resulting vectors to the embedding store.
// This job is invoked by the `showfinder embed` CLI command.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/54b3r/showfinder-go/internal/rag"
)

const (
	// DefaultBatchSize is the number of descriptions sent per embed call.
	DefaultBatchSize = 100
	// DefaultLimit is the size of the catalog page loaded per run.
	DefaultLimit = 100
)

// ErrorPolicy controls what the job does when a batch fails.
type ErrorPolicy int

const (
	// FailFast aborts the run on the first failed batch. Batches persisted
	// before the failure stay persisted.
	FailFast ErrorPolicy = iota
	// Continue records the failure and moves on to the next batch.
	Continue
)

// String returns the flag/env spelling of the policy.
func (p ErrorPolicy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case Continue:
		return "continue"
	default:
		return fmt.Sprintf("ErrorPolicy(%d)", int(p))
	}
}

// ParseErrorPolicy parses "fail-fast" or "continue". An empty string yields
// FailFast.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-fast", "failfast":
		return FailFast, nil
	case "continue":
		return Continue, nil
	default:
		return FailFast, fmt.Errorf("ingestion: unknown error policy %q (want fail-fast or continue)", s)
	}
}

// Config holds the configuration for the embedding job.
type Config struct {
	// BatchSize is the number of records embedded per call.
	// Defaults to DefaultBatchSize if zero.
	BatchSize int

	// Limit is the number of catalog records loaded for this run.
	// Defaults to DefaultLimit if zero.
	Limit int

	// Policy selects fail-fast or continue-on-error behaviour.
	Policy ErrorPolicy

	// DryRun embeds every batch but skips WriteEmbeddings.
	DryRun bool
}

// BatchError describes one failed batch. First and Last are the show_ids of
// the batch's first and last records.
type BatchError struct {
	Batch int
	First string
	Last  string
	Err   error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (%s..%s): %v", e.Batch, e.First, e.Last, e.Err)
}

// Unwrap returns the underlying failure.
func (e *BatchError) Unwrap() error { return e.Err }

// Result summarises a run.
type Result struct {
	// Loaded is the number of records read from the catalog.
	Loaded int
	// Batches is the number of embed calls issued.
	Batches int
	// Embedded is the number of records that received a vector.
	Embedded int
	// Persisted is the number of records written to the store.
	Persisted int
	// Failures lists failed batches in order. Always empty under FailFast
	// when Run returns a nil error.
	Failures []*BatchError
}

// Err joins the recorded batch failures, or returns nil.
func (r *Result) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Job orchestrates the load → batch → embed → write flow.
type Job struct {
	// source supplies the catalog page.
	source rag.ShowSource

	// embedder converts descriptions into vectors.
	embedder rag.Embedder

	// writer persists the embedding records. May be nil for dry runs.
	writer rag.RecordWriter

	// cfg holds the resolved job configuration.
	cfg Config
}

// NewJob constructs a Job from the provided dependencies and config.
func NewJob(source rag.ShowSource, embedder rag.Embedder, writer rag.RecordWriter, cfg Config) (*Job, error) {
	if source == nil {
		return nil, fmt.Errorf("ingestion: show source must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if writer == nil && !cfg.DryRun {
		return nil, fmt.Errorf("ingestion: record writer must not be nil unless DryRun is set")
	}
	if cfg.BatchSize < 0 || cfg.Limit < 0 {
		return nil, fmt.Errorf("ingestion: batch size and limit must not be negative")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Limit == 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Policy != FailFast && cfg.Policy != Continue {
		return nil, fmt.Errorf("ingestion: unknown error policy %d", int(cfg.Policy))
	}

	return &Job{source: source, embedder: embedder, writer: writer, cfg: cfg}, nil
}

// Config returns the resolved configuration.
func (j *Job) Config() Config { return j.cfg }

// Run executes one pass of the job. Batches run strictly sequentially and
// nothing is retried. Progress is reported via the optional progress callback.
//
// Under FailFast the first failed batch is returned as a *BatchError together
// with the partial Result. Under Continue, Run returns a nil error and the
// failures are available from Result.Failures / Result.Err.
func (j *Job) Run(ctx context.Context, progress func(msg string)) (*Result, error) {
	if progress == nil {
		progress = func(string) {}
	}

	res := &Result{}

	shows, err := j.source.LoadShows(ctx, j.cfg.Limit)
	if err != nil {
		return res, fmt.Errorf("ingestion: load shows failed: %w", err)
	}
	res.Loaded = len(shows)
	progress(fmt.Sprintf("loaded %d shows", len(shows)))

	for i, batch := range partition(shows, j.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		err := j.runBatch(ctx, i, batch, res, progress)
		if err == nil {
			continue
		}

		be := &BatchError{Batch: i, First: batch[0].ID, Last: batch[len(batch)-1].ID, Err: err}
		if j.cfg.Policy == FailFast || isContextErr(err) {
			return res, fmt.Errorf("ingestion: %w", be)
		}
		res.Failures = append(res.Failures, be)
		progress(fmt.Sprintf("batch %d failed, continuing: %v", i, err))
	}

	return res, nil
}

// runBatch embeds and persists one batch, updating res.
func (j *Job) runBatch(ctx context.Context, index int, batch []rag.ShowRecord, res *Result, progress func(string)) error {
	texts := make([]string, len(batch))
	for k, sh := range batch {
		texts[k] = sh.Description
	}

	res.Batches++
	vectors, err := j.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embed: got %d vectors for %d records", len(vectors), len(batch))
	}
	res.Embedded += len(batch)

	records := make([]rag.EmbeddingRecord, len(batch))
	for k, sh := range batch {
		records[k] = rag.EmbeddingRecord{
			ShowID:      sh.ID,
			Title:       sh.Title,
			Description: sh.Description,
			Embedding:   vectors[k],
		}
	}

	if j.cfg.DryRun {
		progress(fmt.Sprintf("batch %d: embedded %d records (dry run) first=%s %s",
			index, len(batch), batch[0].ID, preview(vectors[0])))
		return nil
	}

	if err := j.writer.WriteEmbeddings(ctx, records); err != nil {
		return fmt.Errorf("write embeddings: %w", err)
	}
	res.Persisted += len(batch)
	progress(fmt.Sprintf("batch %d: persisted %d records", index, len(batch)))
	return nil
}

// partition splits shows into consecutive batches of at most size records.
// A non-empty trailing partial batch is always included.
func partition(shows []rag.ShowRecord, size int) [][]rag.ShowRecord {
	if len(shows) == 0 {
		return nil
	}
	batches := make([][]rag.ShowRecord, 0, (len(shows)+size-1)/size)
	for start := 0; start < len(shows); start += size {
		end := start + size
		if end > len(shows) {
			end = len(shows)
		}
		batches = append(batches, shows[start:end])
	}
	return batches
}

// preview renders the first, second and last components of a vector.
func preview(v []float32) string {
	switch len(v) {
	case 0:
		return "[]"
	case 1:
		return fmt.Sprintf("[%g]", v[0])
	default:
		return fmt.Sprintf("[%g,%g...%g]", v[0], v[1], v[len(v)-1])
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
