// Package runner drives name resolution row by row: it applies the
// skip rule for already-resolved names, invokes the resolver cascade,
// and hands each outcome to the configured sinks. A failure in one row
// never aborts the run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/gadievron/mailmatch/internal/namequery"
	"github.com/gadievron/mailmatch/internal/resolver"
)

// RowOutcome is the per-name result record.
type RowOutcome struct {
	Email      string `json:"email"`
	Status     string `json:"status"`
	Alternates string `json:"alternates"`
	Confidence string `json:"confidence"`
}

// NameResolver is the cascade the runner invokes for unresolved rows.
type NameResolver interface {
	Resolve(ctx context.Context, q namequery.NameQuery) (*resolver.PhaseResult, error)
}

// OutcomeSink receives one outcome per row.
type OutcomeSink interface {
	WriteOutcome(ctx context.Context, row int, name string, out RowOutcome) error
}

// PriorLookup returns a previously stored outcome for a name, or nil.
type PriorLookup interface {
	PriorOutcome(ctx context.Context, name string) (*RowOutcome, error)
}

// Summary counts what happened to each row of a run.
type Summary struct {
	Resolved int
	NotFound int
	Skipped  int
	Empty    int
	Errors   int
}

// Runner processes an ordered list of names.
type Runner struct {
	resolver NameResolver
	prior    PriorLookup // may be nil: no resume
	sinks    []OutcomeSink
	logger   *slog.Logger
}

// New creates a Runner. prior may be nil to disable the skip rule.
func New(res NameResolver, prior PriorLookup, logger *slog.Logger, sinks ...OutcomeSink) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{resolver: res, prior: prior, sinks: sinks, logger: logger}
}

// confidenceScoreRe extracts the numeric score from a stored
// confidence string like "High confidence (from: 24.5)".
var confidenceScoreRe = regexp.MustCompile(`\(\s*[a-z]+:\s*([0-9]+(?:\.[0-9]+)?)\s*\)`)

// ShouldSkip implements the resume rule: a prior outcome short-circuits
// re-resolution only when it carries a non-empty email and a parseable
// confidence score of at least 10. Error and Not-found outcomes never
// qualify, so they are retried on the next run.
func ShouldSkip(prior *RowOutcome) bool {
	if prior == nil || prior.Email == "" {
		return false
	}
	m := confidenceScoreRe.FindStringSubmatch(prior.Confidence)
	if m == nil {
		return false
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return false
	}
	return score >= 10
}

// Run processes names in order. It fails outright only when there is
// nothing to process; per-row failures become Error outcomes.
func (r *Runner) Run(ctx context.Context, names []string) (Summary, error) {
	if len(names) == 0 {
		return Summary{}, errors.New("no names to process")
	}

	var sum Summary
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		out, kind := r.processRow(ctx, name)
		switch kind {
		case rowSkipped:
			// skip only the re-resolution: the prior outcome still
			// flows to every sink so the output stays one row per name
			sum.Skipped++
		case rowEmpty:
			sum.Empty++
		case rowResolved:
			sum.Resolved++
		case rowNotFound:
			sum.NotFound++
		case rowError:
			sum.Errors++
		}
		if err := r.write(ctx, i, name, out); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

type rowKind int

const (
	rowResolved rowKind = iota
	rowNotFound
	rowSkipped
	rowEmpty
	rowError
)

// processRow resolves a single name. All resolution failures are
// folded into an Error outcome; only sink failures escape Run.
func (r *Runner) processRow(ctx context.Context, name string) (RowOutcome, rowKind) {
	q, err := namequery.Parse(name)
	if errors.Is(err, namequery.ErrEmptyName) {
		return RowOutcome{Status: "Empty row"}, rowEmpty
	}

	if r.prior != nil {
		prior, err := r.prior.PriorOutcome(ctx, name)
		if err != nil {
			r.logger.Warn("prior outcome lookup failed", "name", name, "error", err)
		} else if ShouldSkip(prior) {
			r.logger.Debug("skipping resolved row", "name", name, "email", prior.Email)
			return *prior, rowSkipped
		}
	}

	res, err := r.resolver.Resolve(ctx, q)
	if err != nil {
		r.logger.Warn("resolution failed", "name", name, "error", err)
		return RowOutcome{Status: "Error: " + err.Error()}, rowError
	}
	if res == nil {
		return RowOutcome{Status: "Not found"}, rowNotFound
	}

	return RowOutcome{
		Email:      res.Winner.Email,
		Status:     res.Source.HumanStatus(),
		Alternates: res.FormatAlternates(),
		Confidence: FormatConfidence(res),
	}, rowResolved
}

// FormatConfidence renders the machine-parseable confidence string the
// skip rule reads back, e.g. "High confidence (from: 24.5)".
func FormatConfidence(res *resolver.PhaseResult) string {
	label := resolver.ConfidenceLabel(res.Winner.Score)
	return fmt.Sprintf("%s confidence (%s: %.1f)", label, res.Source, res.Winner.Score)
}

func (r *Runner) write(ctx context.Context, row int, name string, out RowOutcome) error {
	for _, s := range r.sinks {
		if err := s.WriteOutcome(ctx, row, name, out); err != nil {
			return fmt.Errorf("write outcome for row %d (%s): %w", row, strings.TrimSpace(name), err)
		}
	}
	return nil
}
