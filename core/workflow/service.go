package workflow

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/user"
)

type (
	// StatsCache keeps per-variant status counts between transitions.
	// Entries are versioned per variant: InvalidateStats bumps the version, so counts
	// computed under an older version are never served again.
	StatsCache interface {
		StatsVersion(ctx context.Context, variant Variant) (int64, error)
		GetStats(ctx context.Context, variant Variant, version int64) (Stats, bool, error)
		SetStats(ctx context.Context, stats Stats, version int64) error
		InvalidateStats(ctx context.Context, variant Variant) error
	}

	// Metrics records transition outcomes.
	Metrics interface {
		TransitionApplied(variant Variant, action Action, to Status)
		TransitionRefused(variant Variant, action Action, reason string)
	}

	Service interface {
		Create(ctx context.Context, nr NewRecord, actor Actor) (Record, error)
		UpdatePayload(ctx context.Context, id string, up UpdatePayload, actor Actor) (Record, error)
		Get(ctx context.Context, id string) (Record, error)
		Query(ctx context.Context, filter QueryFilter) ([]Record, error)
		History(ctx context.Context, id string) ([]TransitionLog, error)
		Stats(ctx context.Context, variant Variant) (Stats, error)
		Transition(ctx context.Context, req TransitionRequest) (Record, error)
		AllowedActions(rec Record, actor Actor) []Action
	}

	service struct {
		engine   *Engine
		store    *Store
		repo     Repository
		validate *validator.Validate
		usrSvc   user.Service
		mailSvc  core.EmailService
		cache    StatsCache
		metrics  Metrics
		logger   core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	engine *Engine,
	repo Repository,
	validate *validator.Validate,
	usrSvc user.Service,
	mailSvc core.EmailService,
	cache StatsCache,
	metrics Metrics,
	logger core.Logger,
) Service {
	return &service{
		engine:   engine,
		store:    NewStore(repo),
		repo:     repo,
		validate: validate,
		usrSvc:   usrSvc,
		mailSvc:  mailSvc,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

// canAuthor reports whether `actor` may own records: educators & admins, never students.
func canAuthor(actor Actor) bool {
	return actor.ID != "" && actor.Role != "" && actor.Role != user.RoleStudent
}

func (svc *service) Create(ctx context.Context, nr NewRecord, actor Actor) (Record, error) {
	if !canAuthor(actor) {
		return Record{}, &ValidationError{Kind: Unauthorized, Action: "create"}
	}
	if nr.payload == nil {
		if err := nr.Validate(svc.validate); err != nil {
			return Record{}, err
		}
	}

	now := time.Now().UTC()
	rec, err := svc.repo.CreateRecord(ctx, Record{
		Variant:   nr.Variant,
		Status:    StatusDraft,
		OwnerID:   actor.ID,
		Payload:   nr.payload,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Record{}, newStoreError("create", err)
	}
	svc.invalidateStats(ctx, rec.Variant)
	return rec, nil
}

func (svc *service) UpdatePayload(ctx context.Context, id string, up UpdatePayload, actor Actor) (Record, error) {
	rec, err := svc.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.OwnerID != actor.ID {
		return Record{}, &ValidationError{Kind: Unauthorized, State: rec.Status, Action: "edit"}
	}
	if !rec.Editable() {
		return Record{}, core.NewValidationError(
			errors.Wrapf(ErrNotEditable, "cannot modify %s %s", rec.Status, rec.Variant.Name()),
		)
	}
	if up.payload == nil {
		if err = up.Validate(rec, svc.validate); err != nil {
			return Record{}, err
		}
	}

	updated, err := svc.repo.UpdateRecordPayload(ctx, id, up.payload, time.Now().UTC())
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Record{}, ErrNotFound
		}
		return Record{}, newStoreError("update payload", err)
	}
	return updated, nil
}

func (svc *service) Get(ctx context.Context, id string) (Record, error) {
	return svc.store.Get(ctx, id)
}

// Query lists the records matching `filter`, oldest submission first.
func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if filter.OwnerID == "" && len(filter.Statuses) > 0 {
		ctrl := NewController(svc.engine, svc.store, filter.Variant)
		return ctrl.LoadPending(ctx, filter.Statuses...)
	}
	return svc.store.Query(ctx, filter)
}

func (svc *service) History(ctx context.Context, id string) ([]TransitionLog, error) {
	if _, err := svc.store.Get(ctx, id); err != nil {
		return nil, err
	}
	logs, err := svc.repo.QueryTransitions(ctx, id)
	if err != nil {
		return nil, newStoreError("query transitions", err)
	}
	if logs == nil {
		logs = []TransitionLog{}
	}
	return logs, nil
}

func (svc *service) Stats(ctx context.Context, variant Variant) (Stats, error) {
	var (
		version  int64
		useCache bool
	)
	if svc.cache != nil {
		var err error
		if version, err = svc.cache.StatsVersion(ctx, variant); err != nil {
			svc.logger.Warn(fmt.Sprintf("reading %s stats version: %v", variant, err), err)
		} else {
			useCache = true
			stats, ok, err := svc.cache.GetStats(ctx, variant, version)
			if err != nil {
				svc.logger.Warn(fmt.Sprintf("reading cached %s stats: %v", variant, err), err)
			} else if ok {
				return stats, nil
			}
		}
	}

	counts, err := svc.repo.CountByStatus(ctx, variant)
	if err != nil {
		return Stats{}, newStoreError("count", err)
	}
	stats := newStats(variant, counts)

	// the version read before counting: a transition committed meanwhile has bumped it
	if useCache {
		if err = svc.cache.SetStats(ctx, stats, version); err != nil {
			svc.logger.Warn(fmt.Sprintf("caching %s stats: %v", variant, err), err)
		}
	}
	return stats, nil
}

// Transition loads the record into a fresh Controller, then moves it.
// Submissions are refused while the payload is incomplete.
func (svc *service) Transition(ctx context.Context, req TransitionRequest) (Record, error) {
	ctrl := NewController(svc.engine, svc.store, "")
	before, err := ctrl.Refresh(ctx, req.RecordID)
	if err != nil {
		return Record{}, err
	}

	if req.Action.submits() {
		_, vErr := svc.engine.Validate(before.Variant, before.Status, before.OwnerID, req.Action, req.Actor(), req.Comment)
		if vErr == nil {
			if err = checkSubmittable(before.Payload); err != nil {
				if svc.metrics != nil {
					svc.metrics.TransitionRefused(before.Variant, req.Action, refusedIncompletePayload)
				}
				return Record{}, err
			}
		}
	}

	after, err := ctrl.Transition(ctx, req)
	if err != nil {
		svc.observeRefusal(before.Variant, req.Action, err)
		return Record{}, err
	}

	if svc.metrics != nil {
		svc.metrics.TransitionApplied(after.Variant, req.Action, after.Status)
	}
	svc.invalidateStats(ctx, after.Variant)
	svc.notifyOwner(ctx, after, req)
	return after, nil
}

func (svc *service) AllowedActions(rec Record, actor Actor) []Action {
	return svc.engine.Allowed(rec, actor)
}

const refusedIncompletePayload = "incomplete_payload"

func (svc *service) observeRefusal(variant Variant, action Action, err error) {
	if svc.metrics == nil {
		return
	}
	var vErr *ValidationError
	var sErr *StoreError
	switch {
	case errors.As(err, &vErr):
		svc.metrics.TransitionRefused(variant, action, string(vErr.Kind))
	case errors.As(err, &sErr):
		svc.metrics.TransitionRefused(variant, action, "store_error")
	case err == ErrNotFound:
		svc.metrics.TransitionRefused(variant, action, "not_found")
	}
}

func (svc *service) invalidateStats(ctx context.Context, variant Variant) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.InvalidateStats(ctx, variant); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating %s stats: %v", variant, err), err)
	}
}

type reviewNotification struct {
	OwnerName   string
	RecordID    string
	Variant     string
	Title       string
	StatusLabel string
	Comments    string
}

// notifyOwner emails the owner once someone else reviewed their record.
func (svc *service) notifyOwner(ctx context.Context, rec Record, req TransitionRequest) {
	if svc.mailSvc == nil || svc.usrSvc == nil || req.ActorID == rec.OwnerID {
		return
	}
	switch rec.Status {
	case StatusApproved, StatusRejected, StatusRevisionRequired:
	default:
		return
	}

	owner, err := svc.usrSvc.GetByID(ctx, rec.OwnerID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("finding owner of record %s: %v", rec.ID, err), err)
		return
	}
	if owner.Email == "" {
		return
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: owner.Name, Address: owner.Email}},
		Subject:      fmt.Sprintf("Your %s was reviewed: %s", rec.Variant.Name(), rec.StatusLabel()),
		TemplateName: "record_reviewed",
		TemplateData: reviewNotification{
			OwnerName:   owner.Name,
			RecordID:    rec.ID,
			Variant:     rec.Variant.Name(),
			Title:       rec.Title(),
			StatusLabel: rec.StatusLabel(),
			Comments:    rec.ReviewComments,
		},
	})
}
