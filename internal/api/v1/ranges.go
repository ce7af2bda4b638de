package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/filerange"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/tasks"
)

// FileRangesRequest is a batch of desired ranges. Annotators lists extra
// annotators whose ranges are replaced, so that an annotator absent from
// Data loses every range.
type FileRangesRequest struct {
	Data       []filerange.DesiredRange `json:"data"`
	Annotators []uint                   `json:"annotators"`
}

// ListFileRanges handles GET /campaigns/:id/phases/:phase/file-ranges.
// Managers see every range, annotators their own.
func (c *Controller) ListFileRanges(ctx echo.Context) error {
	cc, err := c.loadCampaign(ctx, true)
	if err != nil {
		return c.HandleError(ctx, err, "Phase not found")
	}

	var annotator *uint
	if !cc.IsOwnerOrAdmin() {
		annotator = &cc.User.ID
	} else if ctx.QueryParam("annotator") != "" {
		id, err := queryID(ctx, "annotator")
		if err != nil {
			return c.HandleError(ctx, err, "Invalid annotator filter")
		}
		annotator = &id
	}

	ranges, err := filerange.ListRanges(ctx.Request().Context(), c.DB, cc.Phase.ID, annotator)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list file ranges")
	}
	return ctx.JSON(http.StatusOK, newFileRangeResponses(ranges))
}

// ReconcileFileRanges handles POST /campaigns/:id/phases/:phase/file-ranges.
func (c *Controller) ReconcileFileRanges(ctx echo.Context) error {
	cc, err := c.loadCampaign(ctx, true)
	if err != nil {
		return c.HandleError(ctx, err, "Phase not found")
	}

	var in FileRangesRequest
	if err := bind(ctx, &in); err != nil {
		return c.HandleError(ctx, err, "Invalid file ranges")
	}

	outcome, err := c.reconciler.Submit(ctx.Request().Context(), c.DB, cc, in.Data, in.Annotators)
	if err != nil {
		return c.HandleError(ctx, err, "File range reconciliation failed")
	}
	return ctx.JSON(http.StatusOK, newReconcileResponse(outcome))
}

// ReplaceAnnotatorFileRanges handles
// PUT /campaigns/:id/phases/:phase/annotators/:uid/file-ranges. The body
// replaces every range of that annotator; an empty list removes them all.
func (c *Controller) ReplaceAnnotatorFileRanges(ctx echo.Context) error {
	cc, err := c.loadCampaign(ctx, true)
	if err != nil {
		return c.HandleError(ctx, err, "Phase not found")
	}
	annotatorID, err := pathID(ctx, "uid", "annotator")
	if err != nil {
		return c.HandleError(ctx, err, "Annotator not found")
	}

	var in FileRangesRequest
	if err := bind(ctx, &in); err != nil {
		return c.HandleError(ctx, err, "Invalid file ranges")
	}
	for i := range in.Data {
		in.Data[i].AnnotatorID = annotatorID
	}

	outcome, err := c.reconciler.Submit(ctx.Request().Context(), c.DB, cc, in.Data, []uint{annotatorID})
	if err != nil {
		return c.HandleError(ctx, err, "File range reconciliation failed")
	}
	return ctx.JSON(http.StatusOK, newReconcileResponse(outcome))
}

func newReconcileResponse(o *filerange.Outcome) ReconcileResponse {
	return ReconcileResponse{
		Data:         newFileRangeResponses(o.Ranges),
		Created:      o.Created,
		Updated:      o.Updated,
		Deleted:      o.Deleted,
		TasksCreated: o.TasksCreated,
		TasksDeleted: o.TasksDeleted,
	}
}

// ListTasks handles GET /campaigns/:id/phases/:phase/tasks: the tasks of
// the caller with the index of each file in the campaign.
func (c *Controller) ListTasks(ctx echo.Context) error {
	cc, err := c.loadCampaign(ctx, true)
	if err != nil {
		return c.HandleError(ctx, err, "Phase not found")
	}

	list, err := tasks.List(ctx.Request().Context(), c.DB, cc.Phase.ID, cc.User.ID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list tasks")
	}
	out := make([]TaskResponse, 0, len(list))
	for i := range list {
		t := &list[i]
		index, _ := cc.FileIndex(t.DatasetFileID)
		out = append(out, TaskResponse{
			ID:     t.ID,
			Status: string(t.Status),
			File:   newFileResponse(t.DatasetFile, index),
		})
	}
	return ctx.JSON(http.StatusOK, out)
}

// queryID parses a numeric query parameter.
func queryID(ctx echo.Context, name string) (uint, error) {
	var id uint
	if err := echo.QueryParamsBinder(ctx).MustUint(name, &id).BindError(); err != nil {
		return 0, errors.Fields(name, errors.CodeInvalid, "A valid integer is required.")
	}
	return id, nil
}
