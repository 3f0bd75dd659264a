// Package coordinator runs a document through remote conversion and falls
// back to local page-by-page extraction.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/rollscan/internal/metrics"
	"github.com/local/rollscan/internal/voter"
)

// Page identifies one page of a document.
type Page struct {
	Path          string
	Number        int // 1-based
	IncludePhotos bool
}

// PageExtractor extracts the voters on one page.
type PageExtractor interface {
	ExtractPage(ctx context.Context, p Page) ([]voter.Voter, error)
}

// RemoteConverter converts a whole document in one call.
type RemoteConverter interface {
	Convert(ctx context.Context, path string) ([]voter.Voter, error)
}

// PageCounter counts a document's pages.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// PageCountFunc adapts a function to PageCounter.
type PageCountFunc func(path string) (int, error)

func (f PageCountFunc) PageCount(path string) (int, error) { return f(path) }

// Reporter receives user-visible status changes.
type Reporter interface {
	Report(ctx context.Context, jobID, status, message string, meta map[string]any)
}

// Status values passed to a Reporter.
const (
	StatusProcessing = "processing"
	StatusError      = "error"
)

// Sources of a Result.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// Document is one upload to digitize.
type Document struct {
	JobID         string
	Path          string
	IncludePhotos bool
	// Concurrency overrides the coordinator default when positive.
	Concurrency int
}

// Result is the accumulated output for a document.
type Result struct {
	Voters      []voter.Voter
	Source      string
	TotalPages  int
	Processed   []int
	FailedPages []int
	Batches     int
	RemoteErr   error
}

// Coordinator owns the strategy order and the batch schedule.
type Coordinator struct {
	Remote      RemoteConverter // optional
	Local       PageExtractor
	Pages       PageCounter
	Reporter    Reporter // optional
	Concurrency int
	SkipPages   int
}

// New returns a coordinator with the given bounds; non-positive
// concurrency becomes 1, negative skip becomes DefaultSkipPages.
func New(remote RemoteConverter, local PageExtractor, pages PageCounter, concurrency, skip int) *Coordinator {
	if concurrency <= 0 {
		concurrency = 1
	}
	if skip < 0 {
		skip = DefaultSkipPages
	}
	return &Coordinator{Remote: remote, Local: local, Pages: pages, Concurrency: concurrency, SkipPages: skip}
}

// Digitize tries the remote conversion first and falls back to local
// extraction. Failed pages contribute nothing; they are never retried.
// A cancelled ctx stops the fallback between batches and returns the
// partial result with ctx's error.
func (c *Coordinator) Digitize(ctx context.Context, doc Document) (*Result, error) {
	lg := log.With().Str("job_id", doc.JobID).Str("file", doc.Path).Logger()
	res := &Result{}

	if c.Remote != nil {
		voters, err := c.Remote.Convert(ctx, doc.Path)
		if err == nil {
			res.Voters, res.Source = voters, SourceRemote
			metrics.AddVoters(SourceRemote, len(voters))
			lg.Info().Int("voters", len(voters)).Msg("remote conversion succeeded")
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.RemoteErr = err
		lg.Warn().Err(err).Msg("remote conversion failed, falling back to local extraction")
	}

	res.Source = SourceLocal
	c.report(ctx, doc.JobID, StatusProcessing, "remote conversion unavailable, extracting pages locally", nil)

	total, err := c.Pages.PageCount(doc.Path)
	if err != nil {
		c.report(ctx, doc.JobID, StatusError, "could not read document", map[string]any{"error": err.Error()})
		return res, fmt.Errorf("count pages: %w", err)
	}
	res.TotalPages = total

	concurrency := c.Concurrency
	if doc.Concurrency > 0 {
		concurrency = doc.Concurrency
	}
	batches := Batches(SelectPages(total, c.SkipPages), concurrency)
	lg.Info().Int("total_pages", total).Int("batches", len(batches)).Int("concurrency", concurrency).Msg("local extraction started")

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			lg.Warn().Int("batch", i+1).Msg("cancelled before batch")
			return res, err
		}
		c.runBatch(ctx, lg, doc, batch, res)
		res.Batches++
		c.report(ctx, doc.JobID, StatusProcessing, fmt.Sprintf("processed %d of %d batches", i+1, len(batches)), map[string]any{
			"voters":        len(res.Voters),
			"pages_done":    len(res.Processed),
			"pages_failed":  len(res.FailedPages),
			"batches_done":  i + 1,
			"batches_total": len(batches),
		})
	}

	metrics.AddVoters(SourceLocal, len(res.Voters))
	lg.Info().
		Int("voters", len(res.Voters)).
		Int("pages", len(res.Processed)).
		Ints("failed_pages", res.FailedPages).
		Msg("local extraction finished")
	return res, nil
}

type pageResult struct {
	job    *ExtractionJob
	voters []voter.Voter
}

// runBatch fans the batch out, waits for every page, then appends the
// page results in page order.
func (c *Coordinator) runBatch(ctx context.Context, lg zerolog.Logger, doc Document, batch []int, res *Result) {
	start := time.Now()
	results := make(chan pageResult, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range batch {
		job := newJob(n)
		g.Go(func() error {
			job.advance(InFlight)
			vs, err := c.extract(gctx, Page{Path: doc.Path, Number: job.Page, IncludePhotos: doc.IncludePhotos})
			if err != nil {
				job.Err = err
				job.advance(Failed)
				results <- pageResult{job: job}
				return nil
			}
			job.advance(Done)
			results <- pageResult{job: job, voters: vs}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	collected := make([]pageResult, 0, len(batch))
	for r := range results {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].job.Page < collected[j].job.Page })
	for _, r := range collected {
		if r.job.State == Failed {
			lg.Warn().Err(r.job.Err).Int("page", r.job.Page).Msg("page failed, contributes no voters")
			res.FailedPages = append(res.FailedPages, r.job.Page)
			continue
		}
		res.Processed = append(res.Processed, r.job.Page)
		res.Voters = append(res.Voters, r.voters...)
	}
	metrics.ObserveBatch(time.Since(start))
}

// extract shields the batch from a panicking extractor.
func (c *Coordinator) extract(ctx context.Context, p Page) (vs []voter.Voter, err error) {
	defer func() {
		if r := recover(); r != nil {
			vs, err = nil, fmt.Errorf("page %d panicked: %v", p.Number, r)
		}
	}()
	return c.Local.ExtractPage(ctx, p)
}

func (c *Coordinator) report(ctx context.Context, jobID, status, msg string, meta map[string]any) {
	if c.Reporter != nil {
		c.Reporter.Report(ctx, jobID, status, msg, meta)
	}
}
