package workflow

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/approvals/core"
)

// Record is one reviewable unit: a curriculum, a lesson plan or an exam-result set.
type Record struct {
	ID             string    `json:"id"`
	Variant        Variant   `json:"variant"`
	Status         Status    `json:"status"`
	OwnerID        string    `json:"owner_id"`
	ReviewerID     string    `json:"reviewer_id"`
	ReviewComments string    `json:"review_comments"`
	SubmittedAt    time.Time `json:"submitted_at"` // UTC
	ReviewedAt     time.Time `json:"reviewed_at"`  // UTC
	Payload        Payload   `json:"payload"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

type recordJSON struct {
	ID             string          `json:"id"`
	Variant        Variant         `json:"variant"`
	Status         Status          `json:"status"`
	OwnerID        string          `json:"owner_id"`
	ReviewerID     string          `json:"reviewer_id"`
	ReviewComments string          `json:"review_comments"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	ReviewedAt     time.Time       `json:"reviewed_at"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// UnmarshalJSON decodes the payload according to the record variant.
func (r *Record) UnmarshalJSON(data []byte) error {
	var rj recordJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return err
	}
	payload, err := DecodePayload(rj.Variant, rj.Payload)
	if err != nil {
		return err
	}
	*r = Record{
		ID:             rj.ID,
		Variant:        rj.Variant,
		Status:         rj.Status,
		OwnerID:        rj.OwnerID,
		ReviewerID:     rj.ReviewerID,
		ReviewComments: rj.ReviewComments,
		SubmittedAt:    rj.SubmittedAt,
		ReviewedAt:     rj.ReviewedAt,
		Payload:        payload,
		CreatedAt:      rj.CreatedAt,
		UpdatedAt:      rj.UpdatedAt,
	}
	return nil
}

// StatusLabel is the display label of the record status.
func (r Record) StatusLabel() string {
	return r.Status.Label(r.Variant)
}

func (r Record) Title() string {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.Title()
}

// Editable reports whether the payload may still be modified by the owner.
func (r Record) Editable() bool {
	switch r.Status {
	case StatusDraft, StatusRevisionRequired:
		return true
	case StatusRejected:
		return r.Variant == VariantLessonPlan
	}
	return false
}

// NewRecord contains information needed to create a new Record.
type NewRecord struct {
	Variant Variant         `json:"variant" validate:"required"`
	Payload json.RawMessage `json:"payload"`

	payload Payload
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	if !nr.Variant.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "variant", Error: errUnknownVariant})
	}
	payload, err := DecodePayload(nr.Variant, nr.Payload)
	if err != nil {
		return err
	}
	if err = payload.Validate(validate); err != nil {
		return err
	}
	nr.payload = payload
	return nil
}

// UpdatePayload defines the new content of an existing Record.
type UpdatePayload struct {
	Payload json.RawMessage `json:"payload"`

	payload Payload
}

func (up *UpdatePayload) Validate(rec Record, validate *validator.Validate) error {
	payload, err := DecodePayload(rec.Variant, up.Payload)
	if err != nil {
		return err
	}
	if err = payload.Validate(validate); err != nil {
		return err
	}
	up.payload = payload
	return nil
}

// TransitionRequest carries everything needed to move a record: the actor is always explicit.
type TransitionRequest struct {
	RecordID  string
	Action    Action
	ActorID   string
	ActorRole string
	Comment   string
}

func (tr TransitionRequest) Actor() Actor {
	return Actor{ID: tr.ActorID, Role: tr.ActorRole}
}

// StatusUpdate is the single-row write applied for a validated transition, along with its history entry.
type StatusUpdate struct {
	Status         Status
	ReviewerID     string
	ReviewComments *string    // nil: unchanged
	SubmittedAt    *time.Time // nil: unchanged
	ReviewedAt     time.Time
	UpdatedAt      time.Time
	Log            TransitionLog
}

// TransitionLog is one entry of a record's review history.
type TransitionLog struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"record_id"`
	Action    Action    `json:"action"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// QueryFilter is a conjunction of equality/inclusion predicates. Empty fields are ignored.
type QueryFilter struct {
	Variant  Variant
	Statuses []Status
	OwnerID  string
}

func (qf *QueryFilter) Validate() error {
	for _, s := range qf.Statuses {
		if !s.IsValid() {
			return core.NewValidationError(
				errors.Errorf("unknown status %q", s),
				core.FieldError{Field: "status", Error: "unknown status " + string(s)},
			)
		}
	}
	return nil
}

// Stats counts the records of a variant per status.
type Stats struct {
	Variant Variant        `json:"variant"`
	Total   int            `json:"total"`
	Counts  map[Status]int `json:"counts"`
}

func newStats(v Variant, counts map[Status]int) Stats {
	st := Stats{Variant: v, Counts: make(map[Status]int, len(Statuses))}
	for _, s := range Statuses {
		st.Counts[s] = counts[s]
		st.Total += counts[s]
	}
	return st
}
