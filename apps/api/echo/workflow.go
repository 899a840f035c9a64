package echoapi

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/workflow"
)

const contextRecordKey = "record"

var errRecordNotFoundInCtx = errors.New("record not found in echo.Context")

type workflowApi struct {
	auth *tokenAuth
	svc  workflow.Service
}

func registerWorkflowAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *tokenAuth, svc workflow.Service) {
	api := workflowApi{auth: auth, svc: svc}

	wg := g.Group("/workflows/:variant", jwt, variantMiddleware)
	wg.GET("", api.query)
	wg.POST("", api.create)
	wg.GET("/stats", api.stats, adminMiddleware())

	rg := g.Group("/records/:id", jwt, api.recordMiddleware)
	rg.GET("", api.retrieve)
	rg.PUT("", api.update)
	rg.GET("/history", api.history)
	rg.POST("/transitions", api.transition)
}

type (
	// RecordResponse is a Record along with what the requesting actor may do next.
	RecordResponse struct {
		workflow.Record
		Title          string            `json:"title"`
		StatusLabel    string            `json:"status_label"`
		AllowedActions []workflow.Action `json:"allowed_actions"`
	}

	TransitionPayload struct {
		Action  workflow.Action `json:"action"`
		Comment string          `json:"comment"`
	}
)

// UnmarshalJSON decodes the record with its variant-aware decoder, then the fields added around it.
func (rr *RecordResponse) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &rr.Record); err != nil {
		return err
	}
	var extra struct {
		Title          string            `json:"title"`
		StatusLabel    string            `json:"status_label"`
		AllowedActions []workflow.Action `json:"allowed_actions"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	rr.Title, rr.StatusLabel, rr.AllowedActions = extra.Title, extra.StatusLabel, extra.AllowedActions
	return nil
}

func (api *workflowApi) respond(rec workflow.Record, actor workflow.Actor) RecordResponse {
	return RecordResponse{
		Record:         rec,
		Title:          rec.Title(),
		StatusLabel:    rec.StatusLabel(),
		AllowedActions: api.svc.AllowedActions(rec, actor),
	}
}

// Handlers

func (api *workflowApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	actor := claims.Actor()

	q := new(RecordQuery)
	q.Bind(ctx, contextVariant(ctx), actor)
	if !claims.IsAdmin { // educators only list their own records
		q.Filter.OwnerID = actor.ID
	}

	recs, err := api.svc.Query(ctx.Request().Context(), q.Filter)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}
	resp := make([]RecordResponse, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, api.respond(rec, actor))
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *workflowApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data workflow.NewRecord
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	data.Variant = contextVariant(ctx)

	rec, err := api.svc.Create(ctx.Request().Context(), data, claims.Actor())
	if err != nil {
		return errors.Wrap(err, "creating record")
	}
	return ctx.JSON(http.StatusCreated, api.respond(rec, claims.Actor()))
}

func (api *workflowApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), contextVariant(ctx))
	if err != nil {
		return errors.Wrap(err, "counting records")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *workflowApi) retrieve(ctx echo.Context) error {
	rec, claims, err := contextRecord(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.respond(rec, claims.Actor()))
}

func (api *workflowApi) update(ctx echo.Context) error {
	rec, claims, err := contextRecord(ctx)
	if err != nil {
		return err
	}

	var data workflow.UpdatePayload
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePayload")
	}

	rec, err = api.svc.UpdatePayload(ctx.Request().Context(), rec.ID, data, claims.Actor())
	if err != nil {
		return errors.Wrap(err, "updating record payload")
	}
	return ctx.JSON(http.StatusOK, api.respond(rec, claims.Actor()))
}

func (api *workflowApi) history(ctx echo.Context) error {
	rec, _, err := contextRecord(ctx)
	if err != nil {
		return err
	}

	logs, err := api.svc.History(ctx.Request().Context(), rec.ID)
	if err != nil {
		return errors.Wrap(err, "querying record history")
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *workflowApi) transition(ctx echo.Context) error {
	rec, claims, err := contextRecord(ctx)
	if err != nil {
		return err
	}

	var data TransitionPayload
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TransitionPayload")
	}
	if !data.Action.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "action", Error: "unknown action " + string(data.Action)})
	}

	actor := claims.Actor()
	rec, err = api.svc.Transition(ctx.Request().Context(), workflow.TransitionRequest{
		RecordID:  rec.ID,
		Action:    data.Action,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Comment:   data.Comment,
	})
	if err != nil {
		return errors.Wrapf(err, "applying %s", data.Action)
	}
	return ctx.JSON(http.StatusOK, api.respond(rec, actor))
}

// Middleware

func variantMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !workflow.Variant(ctx.Param("variant")).IsValid() {
			return errHttpNotFound
		}
		return next(ctx)
	}
}

func contextVariant(ctx echo.Context) workflow.Variant {
	return workflow.Variant(ctx.Param("variant"))
}

// recordMiddleware loads the record of `:id`. Only its owner & admins can see it.
func (api *workflowApi) recordMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}

		rec, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding record by ID")
		}
		if rec.OwnerID != claims.Subject && !claims.IsAdmin {
			return errHttpNotFound
		}
		ctx.Set(contextRecordKey, rec)
		return next(ctx)
	}
}

func contextRecord(ctx echo.Context) (workflow.Record, Claims, error) {
	rec, ok := ctx.Get(contextRecordKey).(workflow.Record)
	if !ok {
		return workflow.Record{}, Claims{}, errors.Wrap(errRecordNotFoundInCtx, "retrieving record from context")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return workflow.Record{}, Claims{}, errors.Wrap(err, "getting context claims")
	}
	return rec, claims, nil
}
