// Package annotate orchestrates an extraction run: chunking the
// document, scheduling one model call per (chunk, pass), resolving raw
// output into grounded extractions, and merging passes into a single
// ordered result.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gleanlabs/glean/internal/chunk"
	"github.com/gleanlabs/glean/internal/prompt"
	"github.com/gleanlabs/glean/internal/providers"
	"github.com/gleanlabs/glean/internal/resolver"
	"github.com/gleanlabs/glean/internal/schema"
)

// Defaults for an extraction run.
const (
	DefaultMaxCharBuffer = 1000
	DefaultMaxWorkers    = 10
	DefaultPasses        = 1
	DefaultTemperature   = 0.3
)

// Options configures an Annotator.
type Options struct {
	// Passes is the number of sequential extraction sweeps over the
	// whole document. Later passes recover entities earlier passes
	// missed; overlapping same-class finds defer to the earlier pass.
	Passes int
	// MaxWorkers bounds concurrent model calls across chunks and
	// passes.
	MaxWorkers int
	// MaxCharBuffer is the chunk size budget in bytes. Zero means a
	// single chunk.
	MaxCharBuffer int

	FenceOutput          bool
	UseSchemaConstraints bool

	// Temperature is the sampling temperature. Nil selects the
	// default; a pointer so zero can be requested explicitly.
	Temperature *float64
	Timeout     time.Duration

	Logger *slog.Logger
}

// Diagnostics summarizes the non-fatal trouble encountered during a
// run. A run with failures still returns every extraction it could
// ground.
type Diagnostics struct {
	ChunkCount      int `json:"chunk_count"`
	Passes          int `json:"passes"`
	ModelCalls      int `json:"model_calls"`
	CandidatesSeen  int `json:"candidates_seen"`
	ParseFailures   int `json:"parse_failures"`
	BackendFailures int `json:"backend_failures"`
	GroundingMisses int `json:"grounding_misses"`
}

// Result is the outcome of one extraction run. Extractions are ordered
// by character start; ties go to the earlier pass.
type Result struct {
	RunID        string              `json:"run_id"`
	DocumentText string              `json:"-"`
	Extractions  []resolver.Grounded `json:"extractions"`
	Diagnostics  Diagnostics         `json:"diagnostics"`
	Elapsed      time.Duration       `json:"elapsed"`
}

// Annotator runs extractions for one task definition against one
// provider. Immutable after construction; safe for concurrent use.
type Annotator struct {
	provider    providers.Provider
	task        *schema.TaskDefinition
	compiled    *prompt.Compiled
	resolver    *resolver.Resolver
	opts        Options
	temperature float64
	logger      *slog.Logger
}

// New validates the task, compiles the prompt, and prepares the
// resolver. Schema and configuration problems surface here, before any
// model call is made.
func New(provider providers.Provider, task *schema.TaskDefinition, opts Options) (*Annotator, error) {
	if provider == nil {
		return nil, &schema.ConfigError{Field: "provider", Detail: "no model backend configured"}
	}
	if err := schema.ValidateTask(task); err != nil {
		return nil, err
	}

	if opts.Passes <= 0 {
		opts.Passes = DefaultPasses
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	if opts.MaxCharBuffer < 0 {
		opts.MaxCharBuffer = DefaultMaxCharBuffer
	}
	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	compiled, err := prompt.Compile(task, prompt.Options{
		FenceOutput:          opts.FenceOutput,
		UseSchemaConstraints: opts.UseSchemaConstraints,
	})
	if err != nil {
		return nil, err
	}

	resOpts := resolver.Options{}
	if opts.UseSchemaConstraints {
		resOpts.Schema = prompt.ExtractionSchemaJSON()
	}
	res, err := resolver.New(resOpts)
	if err != nil {
		return nil, err
	}

	return &Annotator{
		provider:    provider,
		task:        task,
		compiled:    compiled,
		resolver:    res,
		opts:        opts,
		temperature: temperature,
		logger:      opts.Logger.With("task", task.Name, "provider", provider.Name()),
	}, nil
}

// taskResult is the write-once outcome slot for one (chunk, pass).
type taskResult struct {
	grounded   []resolver.Grounded
	candidates int
	misses     int
	parseErr   bool
	backendErr error
}

// Annotate runs the full pipeline over one document.
func (a *Annotator) Annotate(ctx context.Context, document string) (*Result, error) {
	runID := uuid.New().String()
	logger := a.logger.With("run_id", runID)
	start := time.Now()

	chunks := chunk.Split(document, a.opts.MaxCharBuffer)
	diag := Diagnostics{
		ChunkCount: len(chunks),
		Passes:     a.opts.Passes,
		ModelCalls: len(chunks) * a.opts.Passes,
	}

	if len(chunks) == 0 {
		return &Result{
			RunID:        runID,
			DocumentText: document,
			Diagnostics:  diag,
			Elapsed:      time.Since(start),
		}, nil
	}

	logger.Info("starting extraction run",
		"chunks", len(chunks),
		"passes", a.opts.Passes,
		"workers", a.opts.MaxWorkers)

	// One slot per (pass, chunk). Each slot is written by exactly one
	// goroutine, so collection after Wait needs no locking.
	slots := make([][]taskResult, a.opts.Passes)
	for p := range slots {
		slots[p] = make([]taskResult, len(chunks))
	}

	eg, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, a.opts.MaxWorkers)

	for p := 0; p < a.opts.Passes; p++ {
		for i := range chunks {
			p, i := p, i
			eg.Go(func() error {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-gctx.Done():
					return gctx.Err()
				}
				slots[p][i] = a.runTask(gctx, logger, runID, p, chunks[i])
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var accepted []resolver.Grounded
	for p := 0; p < a.opts.Passes; p++ {
		for i := range chunks {
			slot := &slots[p][i]
			diag.CandidatesSeen += slot.candidates
			diag.GroundingMisses += slot.misses
			if slot.parseErr {
				diag.ParseFailures++
			}
			if slot.backendErr != nil {
				diag.BackendFailures++
			}
			for _, g := range slot.grounded {
				g.PassIndex = p
				if p > 0 && overlapsSameClass(accepted, g) {
					continue
				}
				accepted = append(accepted, g)
			}
		}
	}

	// Chunks within a pass are appended in chunk order and passes in
	// pass order, so a stable sort on start offset preserves the
	// pass-then-emission tiebreak.
	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].CharStart < accepted[j].CharStart
	})

	if diag.BackendFailures == diag.ModelCalls {
		var firstErr error
		for p := range slots {
			for i := range slots[p] {
				if slots[p][i].backendErr != nil {
					firstErr = slots[p][i].backendErr
					break
				}
			}
			if firstErr != nil {
				break
			}
		}
		return nil, fmt.Errorf("all %d model calls failed: %w", diag.ModelCalls, firstErr)
	}

	logger.Info("extraction run complete",
		"extractions", len(accepted),
		"candidates", diag.CandidatesSeen,
		"parse_failures", diag.ParseFailures,
		"backend_failures", diag.BackendFailures,
		"grounding_misses", diag.GroundingMisses,
		"elapsed", time.Since(start))

	return &Result{
		RunID:        runID,
		DocumentText: document,
		Extractions:  accepted,
		Diagnostics:  diag,
		Elapsed:      time.Since(start),
	}, nil
}

// runTask performs one model call and resolves its output. Failures
// are recorded in the slot, never propagated: one bad chunk must not
// sink the run.
func (a *Annotator) runTask(ctx context.Context, logger *slog.Logger, runID string, pass int, c chunk.Chunk) taskResult {
	req := &providers.GenerateRequest{
		System:      a.compiled.System,
		User:        a.compiled.BuildUserPrompt(c.Text),
		Temperature: a.temperature,
		Timeout:     a.opts.Timeout,
		RequestID:   fmt.Sprintf("%s-p%d-c%d", runID, pass, c.Index),
	}
	if a.opts.UseSchemaConstraints {
		req.Schema = prompt.ExtractionSchemaJSON()
	}

	res, err := a.provider.Generate(ctx, req)
	if err != nil {
		logger.Warn("model call failed",
			"pass", pass, "chunk", c.Index, "error", err)
		return taskResult{backendErr: err}
	}

	candidates, err := a.resolver.Parse(res.Raw)
	if err != nil {
		var perr *resolver.ParseError
		if errors.As(err, &perr) {
			logger.Warn("unparseable model output",
				"pass", pass, "chunk", c.Index, "error", err)
			return taskResult{parseErr: true}
		}
		return taskResult{backendErr: err}
	}

	grounded, misses := a.resolver.Ground(c, candidates)
	if misses > 0 {
		logger.Debug("dropped ungroundable candidates",
			"pass", pass, "chunk", c.Index, "misses", misses)
	}
	return taskResult{
		grounded:   grounded,
		candidates: len(candidates),
		misses:     misses,
	}
}

// overlapsSameClass reports whether g shares any character span with an
// already-accepted extraction of the same class. Cross-class overlap is
// legitimate (a span can be both a person and a subject) and is kept.
func overlapsSameClass(accepted []resolver.Grounded, g resolver.Grounded) bool {
	for _, a := range accepted {
		if a.Class != g.Class {
			continue
		}
		if g.CharStart < a.CharEnd && a.CharStart < g.CharEnd {
			return true
		}
	}
	return false
}
