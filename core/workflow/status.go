package workflow

// Variant is the kind of reviewable record.
type Variant string

const (
	VariantCurriculum Variant = "curriculum"
	VariantLessonPlan Variant = "lesson_plan"
	VariantExam       Variant = "exam"
)

var Variants = []Variant{VariantCurriculum, VariantLessonPlan, VariantExam}

func (v Variant) IsValid() bool {
	switch v {
	case VariantCurriculum, VariantLessonPlan, VariantExam:
		return true
	}
	return false
}

// Name is the human readable variant name.
func (v Variant) Name() string {
	switch v {
	case VariantCurriculum:
		return "curriculum"
	case VariantLessonPlan:
		return "lesson plan"
	case VariantExam:
		return "exam results"
	}
	return string(v)
}

// Status is the closed set of workflow states shared by every variant.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusSubmitted        Status = "submitted"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusRevisionRequired Status = "revision_required"
)

var Statuses = []Status{StatusDraft, StatusSubmitted, StatusApproved, StatusRejected, StatusRevisionRequired}

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected, StatusRevisionRequired:
		return true
	}
	return false
}

// statusLabels holds the per-variant display labels.
var statusLabels = map[Variant]map[Status]string{
	VariantCurriculum: {
		StatusDraft:            "Draft",
		StatusSubmitted:        "Pending Approval",
		StatusApproved:         "Approved",
		StatusRejected:         "Rejected",
		StatusRevisionRequired: "Revision Required",
	},
	VariantLessonPlan: {
		StatusDraft:            "Draft",
		StatusSubmitted:        "Pending",
		StatusApproved:         "Approved",
		StatusRejected:         "Rejected",
		StatusRevisionRequired: "Needs Revision",
	},
	VariantExam: {
		StatusDraft:            "Marks Pending",
		StatusSubmitted:        "Pending Moderation",
		StatusApproved:         "Published",
		StatusRejected:         "Rejected",
		StatusRevisionRequired: "Remarking Required",
	},
}

// Label returns the display label of `s` for variant `v`.
func (s Status) Label(v Variant) string {
	if label, ok := statusLabels[v][s]; ok {
		return label
	}
	return string(s)
}

// Action is a named transition request.
type Action string

const (
	ActionSubmit          Action = "submit"
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionRequestRevision Action = "request_revision"
	ActionResubmit        Action = "resubmit"
	ActionAutoApprove     Action = "auto_approve"
)

var Actions = []Action{ActionSubmit, ActionApprove, ActionReject, ActionRequestRevision, ActionResubmit, ActionAutoApprove}

func (a Action) IsValid() bool {
	switch a {
	case ActionSubmit, ActionApprove, ActionReject, ActionRequestRevision, ActionResubmit, ActionAutoApprove:
		return true
	}
	return false
}

// RequiresComment reports whether the action must carry a non-blank comment.
func (a Action) RequiresComment() bool {
	return a == ActionReject || a == ActionRequestRevision
}

// submits reports whether the action (re)starts a review round.
func (a Action) submits() bool {
	return a == ActionSubmit || a == ActionResubmit
}
