package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/workflow"
)

const (
	recordColumns     = `id, variant, status, owner_id, reviewer_id, review_comments, submitted_at, reviewed_at, payload, created_at, updated_at`
	transitionColumns = `id, record_id, action, from_status, to_status, actor_id, actor_role, comment, created_at`
)

var recordOrderingColumns = map[string]string{
	"id":           "id",
	"status":       "status",
	"submitted_at": "submitted_at",
	"reviewed_at":  "reviewed_at",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
}

type recordRow struct {
	ID             string         `db:"id"`
	Variant        string         `db:"variant"`
	Status         string         `db:"status"`
	OwnerID        string         `db:"owner_id"`
	ReviewerID     null.String    `db:"reviewer_id"`
	ReviewComments null.String    `db:"review_comments"`
	SubmittedAt    null.Time      `db:"submitted_at"`
	ReviewedAt     null.Time      `db:"reviewed_at"`
	Payload        types.JSONText `db:"payload"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func toRecordRow(rec workflow.Record) (recordRow, error) {
	payload, err := marshalPayload(rec.Payload)
	if err != nil {
		return recordRow{}, err
	}
	return recordRow{
		ID:             rec.ID,
		Variant:        string(rec.Variant),
		Status:         string(rec.Status),
		OwnerID:        rec.OwnerID,
		ReviewerID:     null.NewString(rec.ReviewerID, rec.ReviewerID != ""),
		ReviewComments: null.NewString(rec.ReviewComments, rec.ReviewComments != ""),
		SubmittedAt:    null.NewTime(rec.SubmittedAt.UTC(), !rec.SubmittedAt.IsZero()),
		ReviewedAt:     null.NewTime(rec.ReviewedAt.UTC(), !rec.ReviewedAt.IsZero()),
		Payload:        payload,
		CreatedAt:      rec.CreatedAt.UTC(),
		UpdatedAt:      rec.UpdatedAt.UTC(),
	}, nil
}

func (r recordRow) toRecord() (workflow.Record, error) {
	variant := workflow.Variant(r.Variant)
	payload, err := workflow.DecodePayload(variant, json.RawMessage(r.Payload))
	if err != nil {
		return workflow.Record{}, errors.Wrapf(err, "decoding payload of record %s", r.ID)
	}
	return workflow.Record{
		ID:             r.ID,
		Variant:        variant,
		Status:         workflow.Status(r.Status),
		OwnerID:        r.OwnerID,
		ReviewerID:     r.ReviewerID.String,
		ReviewComments: r.ReviewComments.String,
		SubmittedAt:    r.SubmittedAt.Time.UTC(),
		ReviewedAt:     r.ReviewedAt.Time.UTC(),
		Payload:        payload,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}, nil
}

func marshalPayload(p workflow.Payload) (types.JSONText, error) {
	if p == nil {
		return types.JSONText("{}"), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "encoding payload")
	}
	return types.JSONText(data), nil
}

type transitionRow struct {
	ID         string    `db:"id"`
	RecordID   string    `db:"record_id"`
	Action     string    `db:"action"`
	FromStatus string    `db:"from_status"`
	ToStatus   string    `db:"to_status"`
	ActorID    string    `db:"actor_id"`
	ActorRole  string    `db:"actor_role"`
	Comment    string    `db:"comment"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r transitionRow) toLog() workflow.TransitionLog {
	return workflow.TransitionLog{
		ID:        r.ID,
		RecordID:  r.RecordID,
		Action:    workflow.Action(r.Action),
		From:      workflow.Status(r.FromStatus),
		To:        workflow.Status(r.ToStatus),
		ActorID:   r.ActorID,
		ActorRole: r.ActorRole,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type recordRepository struct {
	db *sqlx.DB
}

var _ workflow.Repository = (*recordRepository)(nil) // interface compliance check

func NewRecordRepository(db *sqlx.DB) workflow.Repository {
	return &recordRepository{db: db}
}

func (repo *recordRepository) QueryRecords(ctx context.Context, filter workflow.QueryFilter, ordering []core.DBOrdering) ([]workflow.Record, error) {
	w := new(where)
	if filter.Variant != "" {
		w.add("variant = ?", string(filter.Variant))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		w.add("status IN (?)", statuses)
	}
	if filter.OwnerID != "" {
		if !validID(filter.OwnerID) {
			return []workflow.Record{}, nil
		}
		w.add("owner_id = ?", filter.OwnerID)
	}

	q := `SELECT ` + recordColumns + ` FROM workflow_record` + w.String()
	if orderBy := core.OrderByClause(ordering, recordOrderingColumns); orderBy != "" {
		q += " ORDER BY " + orderBy
	}

	q, args, err := build(q, w.args)
	if err != nil {
		return nil, err
	}
	var rows []recordRow
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying records")
	}

	recs := make([]workflow.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toRecord()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (repo *recordRepository) GetRecord(ctx context.Context, id string) (workflow.Record, error) {
	if !validID(id) {
		return workflow.Record{}, workflow.ErrNotFound
	}
	var row recordRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+recordColumns+` FROM workflow_record WHERE id = $1`, id)
	if err != nil {
		return workflow.Record{}, trapNoRowsErr(err, workflow.ErrNotFound, "finding record")
	}
	return row.toRecord()
}

func (repo *recordRepository) CreateRecord(ctx context.Context, rec workflow.Record) (workflow.Record, error) {
	rec.ID = uuid.New().String()
	row, err := toRecordRow(rec)
	if err != nil {
		return workflow.Record{}, err
	}

	q := `INSERT INTO workflow_record (` + recordColumns + `)
		VALUES (:id, :variant, :status, :owner_id, :reviewer_id, :review_comments, :submitted_at, :reviewed_at, :payload, :created_at, :updated_at)`
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		return workflow.Record{}, errors.Wrap(err, "inserting record")
	}
	return row.toRecord()
}

// UpdateRecordStatus writes the status change & its history entry in one transaction.
func (repo *recordRepository) UpdateRecordStatus(ctx context.Context, id string, upd workflow.StatusUpdate) (rec workflow.Record, err error) {
	if !validID(id) {
		return workflow.Record{}, workflow.ErrNotFound
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return workflow.Record{}, errors.Wrap(err, "starting transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q := `UPDATE workflow_record SET
		status = $2,
		reviewer_id = $3,
		review_comments = COALESCE($4, review_comments),
		submitted_at = COALESCE($5, submitted_at),
		reviewed_at = $6,
		updated_at = $7
		WHERE id = $1
		RETURNING ` + recordColumns
	var row recordRow
	err = tx.GetContext(ctx, &row, q,
		id,
		string(upd.Status),
		null.NewString(upd.ReviewerID, upd.ReviewerID != ""),
		null.StringFromPtr(upd.ReviewComments),
		null.TimeFromPtr(upd.SubmittedAt),
		upd.ReviewedAt.UTC(),
		upd.UpdatedAt.UTC(),
	)
	if err != nil {
		return workflow.Record{}, trapNoRowsErr(err, workflow.ErrNotFound, "updating record status")
	}

	log := transitionRow{
		ID:         uuid.New().String(),
		RecordID:   id,
		Action:     string(upd.Log.Action),
		FromStatus: string(upd.Log.From),
		ToStatus:   string(upd.Log.To),
		ActorID:    upd.Log.ActorID,
		ActorRole:  upd.Log.ActorRole,
		Comment:    upd.Log.Comment,
		CreatedAt:  upd.Log.CreatedAt.UTC(),
	}
	_, err = tx.NamedExecContext(ctx, `INSERT INTO workflow_transition (`+transitionColumns+`)
		VALUES (:id, :record_id, :action, :from_status, :to_status, :actor_id, :actor_role, :comment, :created_at)`, log)
	if err != nil {
		return workflow.Record{}, errors.Wrap(err, "inserting transition")
	}

	if err = tx.Commit(); err != nil {
		return workflow.Record{}, errors.Wrap(err, "committing transition")
	}
	return row.toRecord()
}

func (repo *recordRepository) UpdateRecordPayload(ctx context.Context, id string, payload workflow.Payload, updatedAt time.Time) (workflow.Record, error) {
	if !validID(id) {
		return workflow.Record{}, workflow.ErrNotFound
	}
	data, err := marshalPayload(payload)
	if err != nil {
		return workflow.Record{}, err
	}

	var row recordRow
	q := `UPDATE workflow_record SET payload = $2, updated_at = $3 WHERE id = $1 RETURNING ` + recordColumns
	if err = repo.db.GetContext(ctx, &row, q, id, data, updatedAt.UTC()); err != nil {
		return workflow.Record{}, trapNoRowsErr(err, workflow.ErrNotFound, "updating record payload")
	}
	return row.toRecord()
}

func (repo *recordRepository) QueryTransitions(ctx context.Context, recordID string) ([]workflow.TransitionLog, error) {
	if !validID(recordID) {
		return []workflow.TransitionLog{}, nil
	}
	var rows []transitionRow
	q := `SELECT ` + transitionColumns + ` FROM workflow_transition WHERE record_id = $1 ORDER BY created_at ASC, id ASC`
	if err := repo.db.SelectContext(ctx, &rows, q, recordID); err != nil {
		return nil, errors.Wrap(err, "querying transitions")
	}

	logs := make([]workflow.TransitionLog, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, r.toLog())
	}
	return logs, nil
}

func (repo *recordRepository) CountByStatus(ctx context.Context, variant workflow.Variant) (map[workflow.Status]int, error) {
	w := new(where)
	if variant != "" {
		w.add("variant = ?", string(variant))
	}
	q, args, err := build(`SELECT status, COUNT(*) AS count FROM workflow_record`+w.String()+` GROUP BY status`, w.args)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "counting records")
	}

	counts := make(map[workflow.Status]int, len(rows))
	for _, r := range rows {
		counts[workflow.Status(r.Status)] = r.Count
	}
	return counts, nil
}
