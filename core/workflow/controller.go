package workflow

import (
	"context"
	"sync"
)

// Controller combines load, validate, persist & local cache update for one caller.
// It does not serialize concurrent transitions on the same record: the last write wins.
type Controller struct {
	engine  *Engine
	store   *Store
	variant Variant // "": every variant

	mu      sync.RWMutex
	records []Record
	index   map[string]int
}

func NewController(engine *Engine, store *Store, variant Variant) *Controller {
	return &Controller{
		engine:  engine,
		store:   store,
		variant: variant,
		records: []Record{},
		index:   make(map[string]int),
	}
}

// LoadPending replaces the loaded set with every record whose status is in `statuses`,
// oldest submission first. Returns an empty slice, never nil, on no match.
// An empty status set matches nothing.
func (c *Controller) LoadPending(ctx context.Context, statuses ...Status) ([]Record, error) {
	recs := []Record{}
	if len(statuses) > 0 {
		var err error
		if recs, err = c.store.Query(ctx, QueryFilter{Variant: c.variant, Statuses: statuses}); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = recs
	c.index = make(map[string]int, len(recs))
	for i, rec := range recs {
		c.index[rec.ID] = i
	}
	return c.snapshot(), nil
}

// Transition validates & persists `req` on a loaded record, then swaps the cached row for the persisted one.
func (c *Controller) Transition(ctx context.Context, req TransitionRequest) (Record, error) {
	rec, ok := c.Get(req.RecordID)
	if !ok {
		return Record{}, ErrNotFound
	}

	actor := req.Actor()
	dec, err := c.engine.Validate(rec.Variant, rec.Status, rec.OwnerID, req.Action, actor, req.Comment)
	if err != nil {
		return Record{}, err
	}

	persisted, err := c.store.Persist(ctx, rec, dec, actor, req.Comment)
	if err != nil {
		return Record{}, err
	}
	c.put(persisted)
	return persisted, nil
}

// Refresh re-fetches a single record into the loaded set.
// A record that vanished from the store is dropped from the set.
func (c *Controller) Refresh(ctx context.Context, id string) (Record, error) {
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			c.drop(id)
		}
		return Record{}, err
	}
	if c.variant != "" && rec.Variant != c.variant {
		return Record{}, ErrNotFound
	}
	c.put(rec)
	return rec, nil
}

// Get returns the loaded record with the given ID.
func (c *Controller) Get(id string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return Record{}, false
	}
	return c.records[i], true
}

// Snapshot returns a copy of the loaded set, in load order.
func (c *Controller) Snapshot() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot()
}

func (c *Controller) snapshot() []Record {
	recs := make([]Record, len(c.records))
	copy(recs, c.records)
	return recs
}

func (c *Controller) put(rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[rec.ID]; ok {
		c.records[i] = rec
		return
	}
	c.index[rec.ID] = len(c.records)
	c.records = append(c.records, rec)
}

func (c *Controller) drop(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return
	}
	c.records = append(c.records[:i], c.records[i+1:]...)
	delete(c.index, id)
	for j := i; j < len(c.records); j++ {
		c.index[c.records[j].ID] = j
	}
}
