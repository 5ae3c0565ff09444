package ripple

import (
	"context"
	"sort"

	"github.com/zoobzio/capitan"
)

// invocation is one distinct handler selected for a cycle together with the
// validators of every group that reached it.
type invocation[H any] struct {
	id         any
	group      GroupKey
	handle     HandlerFunc[H]
	validators []ValidatorFunc[H]
}

// plan returns the handlers triggered by batch. A group triggers when at
// least one of its fields changed. Handlers are ordered by the registry
// position of the first triggered group reaching them.
func (r *Registry[H]) plan(batch ChangeBatch) []*invocation[H] {
	if r.Len() == 0 {
		return nil
	}

	triggered := make(map[int]struct{})
	for field, change := range batch {
		if !change.Changed {
			continue
		}
		for _, key := range r.index[field] {
			triggered[r.position[key]] = struct{}{}
		}
	}

	positions := make([]int, 0, len(triggered))
	for pos := range triggered {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	keys := make([]GroupKey, len(positions))
	for i, pos := range positions {
		keys[i] = r.order[pos]
	}
	return r.aggregate(keys)
}

// planAll selects every registered handler, as if every group triggered.
func (r *Registry[H]) planAll() []*invocation[H] {
	if r.Len() == 0 {
		return nil
	}
	return r.aggregate(r.order)
}

// aggregate collapses groups sharing a handler into one invocation carrying
// the validators of all of them.
func (r *Registry[H]) aggregate(keys []GroupKey) []*invocation[H] {
	byID := make(map[any]*invocation[H], len(keys))
	plan := make([]*invocation[H], 0, len(keys))
	for _, key := range keys {
		e := r.groupHandler[key]
		inv, ok := byID[e.id]
		if !ok {
			inv = &invocation[H]{id: e.id, group: key, handle: e.handle}
			byID[e.id] = inv
			plan = append(plan, inv)
		}
		inv.validators = append(inv.validators, e.validators...)
	}
	return plan
}

// approved reports whether every validator accepts the batch.
func (inv *invocation[H]) approved(ctx context.Context, host H, batch ChangeBatch) bool {
	for _, v := range inv.validators {
		if !v(ctx, host, batch) {
			return false
		}
	}
	return true
}

// invoke runs the planned handlers in order. The first handler error stops
// the remaining handlers and is returned as a *HandlerError.
func (d *Dispatcher[H]) invoke(ctx context.Context, plan []*invocation[H], batch ChangeBatch, skipValidators bool) (int, error) {
	ran := 0
	for _, inv := range plan {
		if !skipValidators && !inv.approved(ctx, d.host, batch) {
			capitan.Emit(ctx, HandlerVetoed,
				KeyGroup.Field(inv.group.String()),
				KeyValidators.Field(len(inv.validators)),
			)
			if d.metrics != nil {
				d.metrics.OnHandlerVetoed(inv.group)
			}
			continue
		}

		if err := inv.handle(ctx, d.host, batch); err != nil {
			capitan.Emit(ctx, HandlerFailed,
				KeyGroup.Field(inv.group.String()),
				KeyError.Field(err.Error()),
			)
			if d.metrics != nil {
				d.metrics.OnHandlerFailed(inv.group)
			}
			return ran, &HandlerError{Group: inv.group, Err: err}
		}

		ran++
		capitan.Emit(ctx, HandlerInvoked,
			KeyGroup.Field(inv.group.String()),
		)
	}
	return ran, nil
}
