package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/approvals/core"
)

// Repository is the record store contract.
// Implementations return ErrNotFound for missing rows; any other error is a store failure.
type Repository interface {
	// QueryRecords applies AND operation on available QueryFilter fields.
	QueryRecords(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Record, error)
	GetRecord(ctx context.Context, id string) (Record, error)
	CreateRecord(ctx context.Context, rec Record) (Record, error)
	// UpdateRecordStatus atomically applies `upd` to one row, records upd.Log, and returns the persisted row.
	UpdateRecordStatus(ctx context.Context, id string, upd StatusUpdate) (Record, error)
	UpdateRecordPayload(ctx context.Context, id string, payload Payload, updatedAt time.Time) (Record, error)
	QueryTransitions(ctx context.Context, recordID string) ([]TransitionLog, error)
	CountByStatus(ctx context.Context, variant Variant) (map[Status]int, error)
}

// submittedFirst orders records oldest submission first.
var submittedFirst = []core.DBOrdering{
	{Field: "submitted_at", Ascending: true},
	{Field: "id", Ascending: true},
}

// Store translates validated transitions into single atomic writes against a Repository.
// Repository failures are surfaced as *StoreError and never retried.
type Store struct {
	repo    Repository
	nowFunc func() time.Time
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo, nowFunc: time.Now}
}

func (s *Store) now() time.Time {
	return s.nowFunc().UTC()
}

// Query returns the records matching `filter`, oldest submission first. Never nil.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Record, error) {
	recs, err := s.repo.QueryRecords(ctx, filter, submittedFirst)
	if err != nil {
		return nil, newStoreError("query", err)
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, nil
}

func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	rec, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Record{}, ErrNotFound
		}
		return Record{}, newStoreError("get", err)
	}
	return rec, nil
}

// Persist applies a Decision issued by the Engine for `rec` in one write.
// The write sets status, reviewer (= actor), review time (= now) and the comment if any;
// (re)submissions also stamp the submission time.
func (s *Store) Persist(ctx context.Context, rec Record, dec Decision, actor Actor, comment string) (Record, error) {
	if !dec.issued || dec.From != rec.Status || dec.Variant != rec.Variant {
		return Record{}, errors.Wrapf(errUnvalidated, "persisting %s on record %s", dec.Action, rec.ID)
	}

	now := s.now()
	upd := StatusUpdate{
		Status:     dec.To,
		ReviewerID: actor.ID,
		ReviewedAt: now,
		UpdatedAt:  now,
		Log: TransitionLog{
			RecordID:  rec.ID,
			Action:    dec.Action,
			From:      dec.From,
			To:        dec.To,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Comment:   core.CleanString(comment),
			CreatedAt: now,
		},
	}
	if c := core.CleanString(comment); c != "" {
		upd.ReviewComments = &c
	}
	if dec.Action.submits() {
		upd.SubmittedAt = &now
	} else if !rec.SubmittedAt.IsZero() && upd.ReviewedAt.Before(rec.SubmittedAt) {
		// clock skew between writers: never review before the submission
		upd.ReviewedAt = rec.SubmittedAt
	}

	persisted, err := s.repo.UpdateRecordStatus(ctx, rec.ID, upd)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Record{}, ErrNotFound
		}
		return Record{}, newStoreError("update", err)
	}
	if persisted.ID != rec.ID || persisted.Status != dec.To {
		return Record{}, core.NewShutdownError(fmt.Sprintf(
			"store acknowledged %s on record %s but returned record %q in %s", dec.Action, rec.ID, persisted.ID, persisted.Status,
		))
	}
	return persisted, nil
}
