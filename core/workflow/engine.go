package workflow

import (
	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/user"
)

// Actor is the authenticated identity invoking a transition.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// RolePolicy maps user roles onto the workflow role classes.
// Top approvers also hold reviewer rights.
type RolePolicy struct {
	Reviewers    []string
	TopApprovers []string
}

// DefaultRolePolicy lets coordinators & plain admins review, principals & owners approve directly.
func DefaultRolePolicy() RolePolicy {
	return RolePolicy{
		Reviewers:    []string{user.RoleAdminCoordinator, user.RoleAdmin},
		TopApprovers: []string{user.RoleAdminPrincipal, user.RoleAdminOwner},
	}
}

type requirement int

const (
	byOwner requirement = iota
	byReviewer
	byTopApproverOwner
)

type edge struct {
	from     Status
	action   Action
	to       Status
	who      requirement
	variants []Variant // nil: every variant
}

// edges is the transition table.
var edges = []edge{
	{from: StatusDraft, action: ActionSubmit, to: StatusSubmitted, who: byOwner},
	{from: StatusSubmitted, action: ActionApprove, to: StatusApproved, who: byReviewer},
	{from: StatusSubmitted, action: ActionReject, to: StatusRejected, who: byReviewer},
	{from: StatusSubmitted, action: ActionRequestRevision, to: StatusRevisionRequired, who: byReviewer},
	{from: StatusRevisionRequired, action: ActionResubmit, to: StatusSubmitted, who: byOwner},
	{from: StatusRejected, action: ActionResubmit, to: StatusSubmitted, who: byOwner, variants: []Variant{VariantLessonPlan}},
	{from: StatusSubmitted, action: ActionAutoApprove, to: StatusApproved, who: byTopApproverOwner, variants: []Variant{VariantCurriculum}},
}

func (e edge) appliesTo(v Variant) bool {
	if e.variants == nil {
		return true
	}
	for _, vv := range e.variants {
		if vv == v {
			return true
		}
	}
	return false
}

// Decision is the outcome of a successful validation.
type Decision struct {
	Variant Variant
	From    Status
	Action  Action
	To      Status
	// AutoApproved is set when a top approver's curriculum submission skips the review step.
	AutoApproved bool

	issued bool
}

// Engine decides which transitions are legal. It does no I/O & never inspects payloads.
type Engine struct {
	reviewers    map[string]struct{}
	topApprovers map[string]struct{}
}

func NewEngine(policy RolePolicy) *Engine {
	eng := &Engine{
		reviewers:    make(map[string]struct{}, len(policy.Reviewers)+len(policy.TopApprovers)),
		topApprovers: make(map[string]struct{}, len(policy.TopApprovers)),
	}
	for _, role := range policy.Reviewers {
		eng.reviewers[role] = struct{}{}
	}
	for _, role := range policy.TopApprovers {
		eng.reviewers[role] = struct{}{}
		eng.topApprovers[role] = struct{}{}
	}
	return eng
}

func (eng *Engine) IsReviewer(role string) bool {
	_, ok := eng.reviewers[role]
	return ok
}

func (eng *Engine) IsTopApprover(role string) bool {
	_, ok := eng.topApprovers[role]
	return ok
}

// Validate decides whether `actor` may apply `action` to a record of `variant` in state `current` owned by `ownerID`.
// Checks run in order: blank comment, missing table row, then the actor's rights.
func (eng *Engine) Validate(variant Variant, current Status, ownerID string, action Action, actor Actor, comment string) (Decision, error) {
	if action.RequiresComment() && core.IsBlank(comment) {
		return Decision{}, &ValidationError{Kind: CommentRequired, State: current, Action: action}
	}

	e, ok := eng.lookup(variant, current, action)
	if !ok {
		return Decision{}, &ValidationError{Kind: IllegalTransition, State: current, Action: action}
	}

	if !eng.allowed(e.who, ownerID, actor) {
		return Decision{}, &ValidationError{Kind: Unauthorized, State: current, Action: action}
	}

	dec := Decision{Variant: variant, From: current, Action: action, To: e.to, issued: true}
	if variant == VariantCurriculum && action.submits() && eng.IsTopApprover(actor.Role) {
		dec.To = StatusApproved
		dec.AutoApproved = true
	}
	if action == ActionAutoApprove {
		dec.AutoApproved = true
	}
	return dec, nil
}

// Allowed lists the actions `actor` may currently apply to `rec`, ignoring comment requirements.
func (eng *Engine) Allowed(rec Record, actor Actor) []Action {
	actions := make([]Action, 0, 3)
	for _, e := range edges {
		if e.from == rec.Status && e.appliesTo(rec.Variant) && eng.allowed(e.who, rec.OwnerID, actor) {
			actions = append(actions, e.action)
		}
	}
	return actions
}

func (eng *Engine) lookup(variant Variant, current Status, action Action) (edge, bool) {
	for _, e := range edges {
		if e.from == current && e.action == action && e.appliesTo(variant) {
			return e, true
		}
	}
	return edge{}, false
}

func (eng *Engine) allowed(who requirement, ownerID string, actor Actor) bool {
	if actor.ID == "" {
		return false
	}
	switch who {
	case byOwner:
		return actor.ID == ownerID
	case byReviewer:
		return eng.IsReviewer(actor.Role)
	case byTopApproverOwner:
		return actor.ID == ownerID && eng.IsTopApprover(actor.Role)
	}
	return false
}
