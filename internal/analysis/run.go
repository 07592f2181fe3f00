// Package analysis feeds user input through the spc engine. A Run holds the
// group slots of one analysis session; Analyze drives a complete request
// from raw text to capability results in one call.
package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/capability.report/internal/spc"
	"github.com/banshee-data/capability.report/internal/timeutil"
)

// Run is one analysis session: an ordered set of group slots plus the
// metadata needed to store and chart it. It is safe for concurrent use.
type Run struct {
	mu        sync.RWMutex
	id        string
	analyst   string
	createdAt time.Time
	groups    []spc.Group
}

// Option configures a Run.
type Option func(*runOptions)

type runOptions struct {
	id      string
	analyst string
	clock   timeutil.Clock
}

// WithAnalyst records who performed the analysis.
func WithAnalyst(name string) Option {
	return func(o *runOptions) { o.analyst = name }
}

// WithClock stamps the run using c instead of the wall clock.
func WithClock(c timeutil.Clock) Option {
	return func(o *runOptions) { o.clock = c }
}

// WithID fixes the run ID instead of generating one.
func WithID(id string) Option {
	return func(o *runOptions) { o.id = id }
}

// GroupLabel is the display label of the group at zero-based index i.
func GroupLabel(i int) string {
	return fmt.Sprintf("Group %d", i+1)
}

// NewRun creates a run with groupCount empty slots.
func NewRun(groupCount int, opts ...Option) (*Run, error) {
	if groupCount < 1 {
		return nil, fmt.Errorf("group count must be positive, got %d", groupCount)
	}

	o := runOptions{clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.New().String()
	}

	groups := make([]spc.Group, groupCount)
	for i := range groups {
		groups[i] = spc.NewGroup(GroupLabel(i), 0)
	}

	return &Run{
		id:        o.id,
		analyst:   o.analyst,
		createdAt: o.clock.Now().UTC(),
		groups:    groups,
	}, nil
}

// ID returns the run's identifier.
func (r *Run) ID() string { return r.id }

// Analyst returns the analyst name, possibly empty.
func (r *Run) Analyst() string { return r.analyst }

// CreatedAt returns when the run was created, in UTC.
func (r *Run) CreatedAt() time.Time { return r.createdAt }

// GroupCount returns the number of group slots.
func (r *Run) GroupCount() int { return len(r.groups) }

// SetInput replaces the input of one slot and re-validates it from scratch.
func (r *Run) SetInput(index, declaredCount int, raw string) (spc.Group, error) {
	if index < 0 || index >= len(r.groups) {
		return spc.Group{}, fmt.Errorf("group index %d out of range [0,%d)", index, len(r.groups))
	}

	g := spc.NewGroup(GroupLabel(index), declaredCount).Submit(raw)

	r.mu.Lock()
	r.groups[index] = g
	r.mu.Unlock()
	return g, nil
}

// Groups returns a snapshot of every slot in order.
func (r *Run) Groups() []spc.Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]spc.Group(nil), r.groups...)
}

// Accepted returns how many slots hold accepted groups.
func (r *Run) Accepted() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, g := range r.groups {
		if g.Accepted() {
			n++
		}
	}
	return n
}

// Complete reports whether every slot is accepted, the precondition for
// Summary.
func (r *Run) Complete() bool {
	return r.Accepted() == len(r.groups)
}

// SubgroupSize returns the declared count shared by every slot, or fallback
// when the slots disagree or have not been declared.
func (r *Run) SubgroupSize(fallback int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	size := r.groups[0].DeclaredCount
	for _, g := range r.groups[1:] {
		if g.DeclaredCount != size {
			return fallback
		}
	}
	if size < 1 {
		return fallback
	}
	return size
}

// Summary estimates the process across all slots.
func (r *Run) Summary(subgroupSize int) (spc.Summary, error) {
	return spc.Estimate(r.Groups(), len(r.groups), subgroupSize)
}

// EvaluateAll evaluates every limit pair against s. Pairs are independent
// and computed concurrently; results keep the order of limits.
func (r *Run) EvaluateAll(ctx context.Context, s spc.Summary, limits []spc.Limits) ([]spc.Result, error) {
	results := make([]spc.Result, len(limits))
	g, ctx := errgroup.WithContext(ctx)
	for i, l := range limits {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := spc.EvaluateLimits(s, l)
			if err != nil {
				return fmt.Errorf("limits %d (LCL=%g, UCL=%g): %w", i+1, l.LCL, l.UCL, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
