package dummydb

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/workflow"
)

type recordRepository struct {
	db *recordTable
}

var _ workflow.Repository = (*recordRepository)(nil) // interface compliance check

func NewRecordRepository(db *DB) workflow.Repository {
	return &recordRepository{db: db.record}
}

// clone copies `rec` along with its payload, so stored rows never share memory with callers.
func clone(rec workflow.Record) (workflow.Record, error) {
	if rec.Payload == nil {
		return rec, nil
	}
	raw, err := json.Marshal(rec.Payload)
	if err != nil {
		return workflow.Record{}, errors.Wrap(err, "encoding payload")
	}
	if rec.Payload, err = workflow.DecodePayload(rec.Variant, raw); err != nil {
		return workflow.Record{}, errors.Wrap(err, "decoding payload")
	}
	return rec, nil
}

var recordLessFuncs = map[string]func(r1, r2 *workflow.Record) int{
	"id":           func(r1, r2 *workflow.Record) int { return strings.Compare(r1.ID, r2.ID) },
	"status":       func(r1, r2 *workflow.Record) int { return strings.Compare(string(r1.Status), string(r2.Status)) },
	"submitted_at": func(r1, r2 *workflow.Record) int { return compareTimes(r1.SubmittedAt, r2.SubmittedAt) },
	"reviewed_at":  func(r1, r2 *workflow.Record) int { return compareTimes(r1.ReviewedAt, r2.ReviewedAt) },
	"created_at":   func(r1, r2 *workflow.Record) int { return compareTimes(r1.CreatedAt, r2.CreatedAt) },
	"updated_at":   func(r1, r2 *workflow.Record) int { return compareTimes(r1.UpdatedAt, r2.UpdatedAt) },
}

func (repo *recordRepository) QueryRecords(_ context.Context, filter workflow.QueryFilter, ordering []core.DBOrdering) ([]workflow.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	statuses := make(map[workflow.Status]struct{}, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[s] = struct{}{}
	}

	recs := make([]workflow.Record, 0)
	for _, rec := range repo.db.table {
		if filter.Variant != "" && rec.Variant != filter.Variant {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[rec.Status]; !ok {
				continue
			}
		}
		if filter.OwnerID != "" && rec.OwnerID != filter.OwnerID {
			continue
		}
		cp, err := clone(*rec)
		if err != nil {
			return nil, err
		}
		recs = append(recs, cp)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := recordLessFuncs[ord.Field]
			if !ok {
				continue
			}
			if c := cmp(&recs[i], &recs[j]); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return recs[i].ID < recs[j].ID
	})
	return recs, nil
}

func (repo *recordRepository) GetRecord(_ context.Context, id string) (workflow.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return clone(*rec)
	}
	return workflow.Record{}, workflow.ErrNotFound
}

func (repo *recordRepository) CreateRecord(_ context.Context, rec workflow.Record) (workflow.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec.ID = uuid.New().String()
	stored, err := clone(rec)
	if err != nil {
		return workflow.Record{}, err
	}
	repo.db.table[rec.ID] = &stored
	return clone(stored)
}

func (repo *recordRepository) UpdateRecordStatus(_ context.Context, id string, upd workflow.StatusUpdate) (workflow.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[id]
	if !ok {
		return workflow.Record{}, workflow.ErrNotFound
	}

	rec := *stored
	rec.Status = upd.Status
	rec.ReviewerID = upd.ReviewerID
	rec.ReviewedAt = upd.ReviewedAt
	rec.UpdatedAt = upd.UpdatedAt
	if upd.ReviewComments != nil {
		rec.ReviewComments = *upd.ReviewComments
	}
	if upd.SubmittedAt != nil {
		rec.SubmittedAt = *upd.SubmittedAt
	}
	repo.db.table[id] = &rec
	out, err := clone(rec)
	if err != nil {
		return workflow.Record{}, err
	}

	log := upd.Log
	log.ID = uuid.New().String()
	log.RecordID = id
	repo.db.transitions[id] = append(repo.db.transitions[id], log)

	return out, nil
}

func (repo *recordRepository) UpdateRecordPayload(_ context.Context, id string, payload workflow.Payload, updatedAt time.Time) (workflow.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[id]
	if !ok {
		return workflow.Record{}, workflow.ErrNotFound
	}

	rec := *stored
	rec.Payload = payload
	rec.UpdatedAt = updatedAt
	rec, err := clone(rec)
	if err != nil {
		return workflow.Record{}, err
	}
	repo.db.table[id] = &rec
	return clone(rec)
}

func (repo *recordRepository) QueryTransitions(_ context.Context, recordID string) ([]workflow.TransitionLog, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	logs := make([]workflow.TransitionLog, len(repo.db.transitions[recordID]))
	copy(logs, repo.db.transitions[recordID])
	return logs, nil
}

func (repo *recordRepository) CountByStatus(_ context.Context, variant workflow.Variant) (map[workflow.Status]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[workflow.Status]int)
	for _, rec := range repo.db.table {
		if variant == "" || rec.Variant == variant {
			counts[rec.Status]++
		}
	}
	return counts, nil
}
