package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// PhaseRequest names the phase to open.
type PhaseRequest struct {
	Phase string `json:"phase"`
}

// ListCampaigns handles GET /campaigns.
func (c *Controller) ListCampaigns(ctx echo.Context) error {
	list, err := c.campaigns.List(ctx.Request().Context(), currentUser(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list campaigns")
	}
	out := make([]CampaignResponse, 0, len(list))
	for _, item := range list {
		out = append(out, newCampaignResponse(item))
	}
	return ctx.JSON(http.StatusOK, out)
}

// CreateCampaign handles POST /campaigns. The creator owns the campaign.
func (c *Controller) CreateCampaign(ctx echo.Context) error {
	var in campaign.CreateInput
	if err := bind(ctx, &in); err != nil {
		return c.HandleError(ctx, err, "Invalid campaign")
	}

	reqCtx := ctx.Request().Context()
	user := currentUser(ctx)
	created, err := c.campaigns.CreateCampaign(reqCtx, user, &in)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create campaign")
	}

	cc, err := c.campaigns.Load(reqCtx, created.ID, "", user)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load campaign")
	}
	return ctx.JSON(http.StatusCreated, newCampaignDetailResponse(cc, nil))
}

// GetCampaign handles GET /campaigns/:id with the progress of every phase.
func (c *Controller) GetCampaign(ctx echo.Context) error {
	cc, err := c.loadCampaign(ctx, false)
	if err != nil {
		return c.HandleError(ctx, err, "Campaign not found")
	}

	progress, err := c.reports.CampaignProgress(ctx.Request().Context(), cc.Campaign, &cc.User.ID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute progress")
	}
	return ctx.JSON(http.StatusOK, newCampaignDetailResponse(cc, progress))
}

// ArchiveCampaign handles POST /campaigns/:id/archive.
func (c *Controller) ArchiveCampaign(ctx echo.Context) error {
	cc, err := c.loadCampaign(ctx, false)
	if err != nil {
		return c.HandleError(ctx, err, "Campaign not found")
	}
	if err := c.campaigns.Archive(ctx.Request().Context(), cc); err != nil {
		return c.HandleError(ctx, err, "Failed to archive campaign")
	}
	return ctx.JSON(http.StatusOK, newCampaignResponse(cc.Campaign))
}

// CreatePhase handles POST /campaigns/:id/phases.
func (c *Controller) CreatePhase(ctx echo.Context) error {
	cc, err := c.loadCampaign(ctx, false)
	if err != nil {
		return c.HandleError(ctx, err, "Campaign not found")
	}

	var in PhaseRequest
	if err := bind(ctx, &in); err != nil {
		return c.HandleError(ctx, err, "Invalid phase")
	}
	phaseType, ok := entities.ParsePhaseType(in.Phase)
	if !ok {
		return c.HandleError(ctx,
			errors.Fields("phase", errors.CodeInvalid, `"`+in.Phase+`" is not a valid choice.`),
			"Invalid phase")
	}

	phase, err := c.campaigns.CreatePhase(ctx.Request().Context(), cc, phaseType)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create phase")
	}
	return ctx.JSON(http.StatusCreated, newPhaseResponse(phase))
}

// EndPhase handles POST /campaigns/:id/phases/:phase/end.
func (c *Controller) EndPhase(ctx echo.Context) error {
	cc, err := c.loadCampaign(ctx, true)
	if err != nil {
		return c.HandleError(ctx, err, "Phase not found")
	}
	if err := c.campaigns.EndPhase(ctx.Request().Context(), cc); err != nil {
		return c.HandleError(ctx, err, "Failed to end phase")
	}
	return ctx.JSON(http.StatusOK, newPhaseResponse(cc.Phase))
}

// PhaseProgress handles GET /campaigns/:id/phases/:phase/progress.
func (c *Controller) PhaseProgress(ctx echo.Context) error {
	cc, err := c.loadCampaign(ctx, true)
	if err != nil {
		return c.HandleError(ctx, err, "Phase not found")
	}
	p, err := c.reports.ProgressCounts(ctx.Request().Context(), cc.Phase.ID, &cc.User.ID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute progress")
	}
	return ctx.JSON(http.StatusOK, p)
}
