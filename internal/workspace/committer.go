package workspace

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/galactic/internal/graph"
	"github.com/roach88/galactic/internal/schema"
	"github.com/roach88/galactic/internal/store"
	"github.com/roach88/galactic/internal/valuecache"
)

// committer persists a graph change set together with every value the
// caches dirtied since the last commit, in one store transaction.
type committer struct {
	store  *store.Store
	reg    *schema.Registry
	caches *valuecache.Cache
	logger *slog.Logger
}

// CommitChanges implements graph.Committer.
func (c *committer) CommitChanges(ctx context.Context, changes []graph.Change) error {
	b, err := c.batch(changes)
	if err != nil {
		return err
	}
	if err := c.store.Commit(ctx, b); err != nil {
		return err
	}
	c.logger.Debug("committed",
		"upserts", len(b.Upserts),
		"deletes", len(b.Deletes),
		"values", len(b.Values),
		"purged", len(b.PurgeValues),
	)
	return nil
}

// batch folds changes into their final per-oid state: the last change of
// an oid decides whether it is upserted or deleted.
func (c *committer) batch(changes []graph.Change) (store.Batch, error) {
	final := map[string]*graph.Object{}
	var order []string
	for _, ch := range changes {
		if _, seen := final[ch.OID]; !seen {
			order = append(order, ch.OID)
		}
		final[ch.OID] = ch.After
	}

	var b store.Batch
	for _, oid := range order {
		obj := final[oid]
		if obj == nil {
			b.Deletes = append(b.Deletes, oid)
			continue
		}
		row, err := objectRow(c.reg, obj)
		if err != nil {
			return store.Batch{}, fmt.Errorf("commit: %w", err)
		}
		b.Upserts = append(b.Upserts, row)
	}

	values, dirty, err := dirtyValues(c.caches)
	if err != nil {
		return store.Batch{}, fmt.Errorf("commit: %w", err)
	}
	b.Values = values
	b.PurgeValues = dirty.Purged
	return b, nil
}

// dirtyValues drains the caches' dirty sets into store value sets. An oid
// both purged and changed since is purged first, then rewritten. The
// drained sets are returned so a failed write can requeue them.
func dirtyValues(caches *valuecache.Cache) ([]store.ValueSet, valuecache.Dirty, error) {
	dirty := caches.TakeDirty()
	sets := make([]store.ValueSet, 0, len(dirty.Changed))
	for _, oid := range dirty.Changed {
		vs, err := valueSet(oid, caches.Snapshot(oid))
		if err != nil {
			caches.Requeue(dirty)
			return nil, valuecache.Dirty{}, err
		}
		sets = append(sets, vs)
	}
	return sets, dirty, nil
}
