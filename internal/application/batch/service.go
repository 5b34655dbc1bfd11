// Package batch evaluates many events concurrently against one rule set.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/doeshing/hookgate/internal/domain"
)

// Evaluator is the part of evaluation.Service a batch needs.
type Evaluator interface {
	Evaluate(ctx context.Context, ev domain.Event) domain.Decision
	Simulate(ctx context.Context, ev domain.Event) (domain.Decision, []domain.RuleEvaluation)
}

// Item is one input line. Err carries a decode failure for that line.
type Item struct {
	Index int
	Event domain.Event
	Err   error
}

// Result is one output line.
type Result struct {
	Index    int                     `json:"index"`
	Decision *domain.Decision        `json:"decision,omitempty"`
	Trace    []domain.RuleEvaluation `json:"trace,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// Service fans items out to a bounded set of workers.
type Service struct {
	Evaluator Evaluator
	Workers   int
	// Live evaluates for real (audit log, metrics) instead of simulating.
	Live bool
	// Trace attaches the per-rule trace to simulated results.
	Trace bool
}

// Run evaluates items and returns results in input order. Each evaluation is
// independent; the only shared state is the read-only rule set.
func (s *Service) Run(ctx context.Context, items []Item) ([]Result, error) {
	workers := s.Workers
	if workers <= 0 {
		workers = domain.DefaultBatchWorkers
	}

	results := make([]Result, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, item := range items {
		if item.Err != nil {
			results[i] = Result{Index: item.Index, Error: item.Err.Error()}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.evaluate(gctx, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (s *Service) evaluate(ctx context.Context, item Item) Result {
	if s.Live {
		d := s.Evaluator.Evaluate(ctx, item.Event)
		return Result{Index: item.Index, Decision: &d}
	}
	d, trace := s.Evaluator.Simulate(ctx, item.Event)
	res := Result{Index: item.Index, Decision: &d}
	if s.Trace {
		res.Trace = trace
	}
	return res
}
