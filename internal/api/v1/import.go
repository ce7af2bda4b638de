package v1

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/importer"
)

// ImportResults handles POST /campaigns/:id/phases/:phase/import. The CSV is
// read from the multipart "file" field, the "data" form field, or a raw
// text/csv body.
func (c *Controller) ImportResults(ctx echo.Context) error {
	cc, err := c.loadCampaign(ctx, true)
	if err != nil {
		return c.HandleError(ctx, err, "Phase not found")
	}

	opts, err := importOptions(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid import options")
	}

	body, closeBody, err := importBody(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid import payload")
	}
	defer closeBody()

	outcome, err := c.importer.ImportCSV(ctx.Request().Context(), c.DB, cc, body, opts)
	if err != nil {
		return c.HandleError(ctx, err, "Result import failed")
	}
	return ctx.JSON(http.StatusCreated, outcome)
}

// importOptions reads the query parameters of an import.
func importOptions(ctx echo.Context) (importer.Options, error) {
	opts := importer.Options{DatasetName: strings.TrimSpace(ctx.QueryParam("dataset_name"))}
	fe := errors.FieldErrors{}

	flags := []struct {
		name string
		dest *bool
	}{
		{"force_datetime", &opts.ForceDatetime},
		{"force_max_frequency", &opts.ForceMaxFrequency},
		{"force", &opts.Force},
	}
	for _, flag := range flags {
		raw := ctx.QueryParam(flag.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fe.Add(flag.name, errors.CodeInvalid, "Must be a valid boolean.")
			continue
		}
		*flag.dest = v
	}

	if raw := ctx.QueryParam("detectors_map"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts.DetectorsMap); err != nil {
			fe.Add("detectors_map", errors.CodeInvalid, "Must be a JSON object of {annotator: {detector, configuration}}.")
		}
	}

	if !fe.Empty() {
		return opts, errors.New(fe).Category(errors.CategoryValidation).Build()
	}
	return opts, nil
}

// importBody returns the CSV of the request and a function releasing it.
func importBody(ctx echo.Context) (io.Reader, func(), error) {
	noop := func() {}
	req := ctx.Request()
	contentType := req.Header.Get(echo.HeaderContentType)

	switch {
	case strings.HasPrefix(contentType, echo.MIMEMultipartForm):
		if fh, err := ctx.FormFile("file"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return nil, noop, errors.Fields("file", errors.CodeInvalid, "The uploaded file could not be read.")
			}
			return f, func() { _ = f.Close() }, nil
		}
		fallthrough
	case strings.HasPrefix(contentType, echo.MIMEApplicationForm):
		if data := ctx.FormValue("data"); data != "" {
			return strings.NewReader(data), noop, nil
		}
		return nil, noop, errors.Fields("file", errors.CodeRequired, "Provide a CSV file or a data field.")
	default:
		return req.Body, noop, nil
	}
}
