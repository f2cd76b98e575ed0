package mutation

import (
	"context"
	"sort"

	"github.com/samsarahq/go/oops"

	"github.com/graphweave/fedgate/internal/telemetry"
	"github.com/graphweave/fedgate/logger"
)

// Transaction is the ordered set of WriteItems a Planner produced from
// one batch of PossibleChanges, ready to hand to a storage driver.
type Transaction struct {
	WriteItems []*WriteItem
}

// Clock supplies the timestamp Lower stamps onto __created_at /
// __updated_at; injected so Planner.Plan stays deterministic and
// testable without wall-clock reads.
type Clock func() string

// Planner runs the full resolve/merge/lower pipeline (spec.md §4.8)
// against a GraphReader.
type Planner struct {
	Reader GraphReader
	Now    Clock

	// Logger receives one entry per failed resolve/fold step. Nil
	// disables logging.
	Logger logger.Logger
}

// Plan resolves, merges, and lowers changes into a Transaction whose
// WriteItems are ordered by (pk, sk) (spec.md §4.8 "ordering within a
// transaction is by (pk, sk) to avoid deadlocks").
func (p *Planner) Plan(ctx context.Context, changes []PossibleChange) (*Transaction, error) {
	span, ctx := telemetry.StartSpan(ctx, telemetry.StageMutation)
	telemetry.Tag(span, "changes", len(changes))
	defer span.Finish()

	resolver, err := NewResolver(ctx, p.Reader)
	if err != nil {
		telemetry.LogError(span, err)
		p.logError("constructing mutation resolver failed", err)
		return nil, oops.Wrapf(err, "constructing mutation resolver")
	}

	var resolved []*InternalChange
	for i, pc := range changes {
		cs, err := resolver.Resolve(ctx, pc)
		if err != nil {
			telemetry.LogError(span, err)
			p.logError("resolving possible change failed", err)
			return nil, oops.Wrapf(err, "resolving possible change %d", i)
		}
		resolved = append(resolved, cs...)
	}

	folded, err := foldChanges(resolved)
	if err != nil {
		telemetry.LogError(span, err)
		p.logError("folding resolved changes failed", err)
		return nil, err
	}

	now := p.Now
	if now == nil {
		now = func() string { return "" }
	}
	stamp := now()

	items := make([]*WriteItem, 0, len(folded))
	for _, c := range folded {
		items = append(items, Lower(c, stamp))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key.Less(items[j].Key) })

	return &Transaction{WriteItems: items}, nil
}

func (p *Planner) logError(msg string, err error) {
	if p.Logger != nil {
		p.Logger.Error(msg, "error", err)
	}
}
