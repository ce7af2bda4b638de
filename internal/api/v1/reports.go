package v1

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/report"
)

// Report formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// DownloadReport handles GET /campaigns/:id/phases/:phase/report.
func (c *Controller) DownloadReport(ctx echo.Context) error {
	return c.download(ctx, true, "results", c.reports.Report)
}

// DownloadReportStatus handles GET /campaigns/:id/phases/:phase/report-status.
func (c *Controller) DownloadReportStatus(ctx echo.Context) error {
	return c.download(ctx, true, "status", c.reports.Status)
}

// DownloadCampaignReport handles GET /campaigns/:id/report, reported
// through the verification phase when the campaign has one.
func (c *Controller) DownloadCampaignReport(ctx echo.Context) error {
	return c.download(ctx, false, "results", c.reports.Report)
}

// DownloadCampaignReportStatus handles GET /campaigns/:id/report-status.
func (c *Controller) DownloadCampaignReportStatus(ctx echo.Context) error {
	return c.download(ctx, false, "status", c.reports.Status)
}

// download renders a report table as an attachment in the format of the
// format query parameter, CSV by default. Reports are restricted to the
// campaign owner and staff and stay available on archived campaigns.
func (c *Controller) download(ctx echo.Context, withPhase bool, kind string, build func(context.Context, *report.Scope) (*report.Table, error)) error {
	cc, err := c.loadCampaign(ctx, withPhase)
	if err != nil {
		return c.HandleError(ctx, err, "Phase not found")
	}
	if !cc.IsOwnerOrAdmin() {
		return c.HandleError(ctx, errors.ForbiddenError("only the campaign owner or staff can download reports"), "Report denied")
	}

	format := strings.ToLower(ctx.QueryParam("format"))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		return c.HandleError(ctx,
			errors.Fields("format", errors.CodeInvalid, `"`+format+`" is not a valid choice.`),
			"Invalid report format")
	}

	scope, err := report.ScopeOf(cc)
	if err != nil {
		return c.HandleError(ctx, err, "Phase not found")
	}
	table, err := build(ctx.Request().Context(), scope)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to build report")
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+scope.Filename(kind, format)+`"`)
	if format == FormatXLSX {
		res.Header().Set(echo.HeaderContentType, report.ContentTypeXLSX)
		res.WriteHeader(http.StatusOK)
		return report.WriteXLSX(res, table, kind)
	}
	res.Header().Set(echo.HeaderContentType, report.ContentTypeCSV+"; charset=utf-8")
	res.WriteHeader(http.StatusOK)
	return report.WriteCSV(res, table)
}
