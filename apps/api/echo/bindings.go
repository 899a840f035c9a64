package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/workflow"
)

const (
	orderingParam = "ordering"
	statusParam   = "status"
	ownerParam    = "owner"
	ownerMe       = "me"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// RecordQuery reads `?status=submitted,approved&status=draft&owner=me` into a workflow.QueryFilter.
type RecordQuery struct {
	Filter workflow.QueryFilter
}

func (rq *RecordQuery) Bind(ctx echo.Context, variant workflow.Variant, actor workflow.Actor) {
	rq.Filter.Variant = variant
	for _, val := range ctx.QueryParams()[statusParam] {
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				rq.Filter.Statuses = append(rq.Filter.Statuses, workflow.Status(s))
			}
		}
	}
	switch owner := strings.TrimSpace(ctx.QueryParam(ownerParam)); owner {
	case "":
	case ownerMe:
		rq.Filter.OwnerID = actor.ID
	default:
		rq.Filter.OwnerID = owner
	}
}
