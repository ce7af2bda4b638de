package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/annotation"
)

// GetFileResults handles GET /campaigns/:id/phases/:phase/files/:fid/results.
func (c *Controller) GetFileResults(ctx echo.Context) error {
	cc, err := c.loadCampaign(ctx, true)
	if err != nil {
		return c.HandleError(ctx, err, "Phase not found")
	}
	fileID, err := pathID(ctx, "fid", "dataset file")
	if err != nil {
		return c.HandleError(ctx, err, "File not found")
	}

	fr, err := c.annotation.ForFile(ctx.Request().Context(), c.DB, cc, fileID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load results")
	}
	return ctx.JSON(http.StatusOK, newFileResultsResponse(fr))
}

// SubmitFileResults handles PUT /campaigns/:id/phases/:phase/files/:fid/results.
// The submission replaces the caller's work on the file and finishes the task.
func (c *Controller) SubmitFileResults(ctx echo.Context) error {
	cc, err := c.loadCampaign(ctx, true)
	if err != nil {
		return c.HandleError(ctx, err, "Phase not found")
	}
	fileID, err := pathID(ctx, "fid", "dataset file")
	if err != nil {
		return c.HandleError(ctx, err, "File not found")
	}

	var sub annotation.Submission
	if err := bind(ctx, &sub); err != nil {
		return c.HandleError(ctx, err, "Invalid submission")
	}

	fr, err := c.annotation.Submit(ctx.Request().Context(), c.DB, cc, fileID, &sub)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to submit results")
	}
	return ctx.JSON(http.StatusOK, newFileResultsResponse(fr))
}

func newFileResultsResponse(fr *annotation.FileResults) FileResultsResponse {
	return FileResultsResponse{
		Status:       string(fr.Status),
		Results:      newResultResponses(fr.Results),
		TaskComments: newCommentResponses(fr.TaskComments),
		Reviewed:     newResultResponses(fr.Reviewed),
	}
}
