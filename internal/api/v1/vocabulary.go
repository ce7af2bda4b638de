package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/repository"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// LabelSetRequest holds a new label set.
type LabelSetRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
}

// ConfidenceSetRequest holds a new confidence indicator set.
type ConfidenceSetRequest struct {
	Name        string                        `json:"name"`
	Description string                        `json:"description"`
	Indicators  []ConfidenceIndicatorResponse `json:"confidence_indicators"`
}

// ListLabelSets handles GET /label-sets.
func (c *Controller) ListLabelSets(ctx echo.Context) error {
	sets, err := repository.NewVocabularyRepository(c.DB).ListLabelSets(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list label sets")
	}
	out := make([]*LabelSetResponse, 0, len(sets))
	for _, s := range sets {
		out = append(out, newLabelSetResponse(s))
	}
	return ctx.JSON(http.StatusOK, out)
}

// CreateLabelSet handles POST /label-sets. Staff only.
func (c *Controller) CreateLabelSet(ctx echo.Context) error {
	var in LabelSetRequest
	if err := bind(ctx, &in); err != nil {
		return c.HandleError(ctx, err, "Invalid label set")
	}

	fe := errors.FieldErrors{}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		fe.Add("name", errors.CodeBlank, "This field may not be blank.")
	}
	labels := make([]string, 0, len(in.Labels))
	for _, label := range in.Labels {
		if label = strings.TrimSpace(label); label == "" {
			fe.Add("labels", errors.CodeBlank, "Labels may not be blank.")
			continue
		}
		labels = append(labels, label)
	}
	if len(in.Labels) == 0 {
		fe.Add("labels", errors.CodeRequired, "This field is required.")
	}
	if !fe.Empty() {
		return c.HandleError(ctx, errors.New(fe).Category(errors.CategoryValidation).Build(), "Invalid label set")
	}

	set, err := repository.NewVocabularyRepository(c.DB).CreateLabelSet(ctx.Request().Context(), name, in.Description, labels)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			err = errors.Fields("name", errors.CodeUnique, "label set with this name already exists.")
		}
		return c.HandleError(ctx, err, "Failed to create label set")
	}
	return ctx.JSON(http.StatusCreated, newLabelSetResponse(set))
}

// ListConfidenceSets handles GET /confidence-sets.
func (c *Controller) ListConfidenceSets(ctx echo.Context) error {
	sets, err := repository.NewVocabularyRepository(c.DB).ListConfidenceSets(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list confidence sets")
	}
	out := make([]*ConfidenceSetResponse, 0, len(sets))
	for _, s := range sets {
		out = append(out, newConfidenceSetResponse(s))
	}
	return ctx.JSON(http.StatusOK, out)
}

// CreateConfidenceSet handles POST /confidence-sets. Staff only.
func (c *Controller) CreateConfidenceSet(ctx echo.Context) error {
	var in ConfidenceSetRequest
	if err := bind(ctx, &in); err != nil {
		return c.HandleError(ctx, err, "Invalid confidence set")
	}

	set, err := checkConfidenceSet(&in)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid confidence set")
	}
	if err := repository.NewVocabularyRepository(c.DB).CreateConfidenceSet(ctx.Request().Context(), set); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			err = errors.Fields("name", errors.CodeUnique, "confidence indicator set with this name already exists.")
		}
		return c.HandleError(ctx, err, "Failed to create confidence set")
	}
	return ctx.JSON(http.StatusCreated, newConfidenceSetResponse(set))
}

// checkConfidenceSet validates a submitted set. Labels and levels are unique
// within the set and at most one indicator is the default.
func checkConfidenceSet(in *ConfidenceSetRequest) (*entities.ConfidenceIndicatorSet, error) {
	fe := errors.FieldErrors{}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		fe.Add("name", errors.CodeBlank, "This field may not be blank.")
	}
	if len(in.Indicators) == 0 {
		fe.Add("confidence_indicators", errors.CodeRequired, "This field is required.")
	}

	set := &entities.ConfidenceIndicatorSet{Name: name, Description: in.Description}
	labels := map[string]bool{}
	levels := map[int]bool{}
	defaults := 0
	for _, ind := range in.Indicators {
		label := strings.TrimSpace(ind.Label)
		switch {
		case label == "":
			fe.Add("confidence_indicators", errors.CodeBlank, "Indicator labels may not be blank.")
		case labels[label]:
			fe.Addf("confidence_indicators", errors.CodeUnique, "Label %q is used twice.", label)
		}
		switch {
		case ind.Level < 0:
			fe.Addf("confidence_indicators", errors.CodeMinValue, "Level %d is negative.", ind.Level)
		case levels[ind.Level]:
			fe.Addf("confidence_indicators", errors.CodeUnique, "Level %d is used twice.", ind.Level)
		}
		labels[label] = true
		levels[ind.Level] = true
		if ind.IsDefault {
			defaults++
		}
		set.Indicators = append(set.Indicators, entities.ConfidenceIndicator{Label: label, Level: ind.Level, IsDefault: ind.IsDefault})
	}
	if defaults > 1 {
		fe.Add("confidence_indicators", errors.CodeInvalid, "Only one indicator can be the default.")
	}

	if !fe.Empty() {
		return nil, errors.New(fe).Category(errors.CategoryValidation).Build()
	}
	return set, nil
}

// ListDetectors handles GET /detectors.
func (c *Controller) ListDetectors(ctx echo.Context) error {
	detectors, err := repository.NewDetectorRepository(c.DB).List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list detectors")
	}
	out := make([]DetectorResponse, 0, len(detectors))
	for _, d := range detectors {
		item := DetectorResponse{ID: d.ID, Name: d.Name, Configurations: make([]DetectorConfigurationResponse, 0, len(d.Configurations))}
		for _, cfg := range d.Configurations {
			item.Configurations = append(item.Configurations, DetectorConfigurationResponse{ID: cfg.ID, Configuration: cfg.Configuration})
		}
		out = append(out, item)
	}
	return ctx.JSON(http.StatusOK, out)
}
