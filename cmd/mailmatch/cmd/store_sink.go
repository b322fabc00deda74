package cmd

import (
	"context"

	"github.com/gadievron/mailmatch/internal/runner"
	"github.com/gadievron/mailmatch/internal/store"
)

// storeSink adapts the SQLite store to the runner's sink and resume
// interfaces.
type storeSink struct {
	store *store.Store
}

func (s *storeSink) WriteOutcome(ctx context.Context, _ int, name string, out runner.RowOutcome) error {
	return s.store.SaveOutcome(ctx, name, store.Outcome{
		Name:       name,
		Email:      out.Email,
		Status:     out.Status,
		Alternates: out.Alternates,
		Confidence: out.Confidence,
	})
}

func (s *storeSink) PriorOutcome(ctx context.Context, name string) (*runner.RowOutcome, error) {
	o, err := s.store.GetOutcome(ctx, name)
	if err != nil || o == nil {
		return nil, err
	}
	return &runner.RowOutcome{
		Email:      o.Email,
		Status:     o.Status,
		Alternates: o.Alternates,
		Confidence: o.Confidence,
	}, nil
}

var (
	_ runner.OutcomeSink = (*storeSink)(nil)
	_ runner.PriorLookup = (*storeSink)(nil)
)
