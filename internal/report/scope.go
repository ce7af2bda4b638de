// Package report aggregates campaign progress and renders the result and
// status reports of a phase.
package report

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// GetLogger returns the report module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("report")
}

// Scope is the phase a report covers and the files it reads.
type Scope struct {
	Campaign *entities.AnnotationCampaign
	// Phase is the reported phase. On a verification phase the annotation
	// phase results are reported too, with their validations.
	Phase *entities.AnnotationCampaignPhase
	Files []entities.DatasetFile
}

// ScopeOf returns the scope of cc. Without a phase the campaign is reported
// through its verification phase when it has one, else its annotation phase.
func ScopeOf(cc *campaign.Context) (*Scope, error) {
	phase := cc.Phase
	if phase == nil {
		if phase = campaign.PhaseOf(cc.Campaign, entities.PhaseVerification); phase == nil {
			phase = campaign.PhaseOf(cc.Campaign, entities.PhaseAnnotation)
		}
	}
	if phase == nil {
		return nil, errors.NotFoundError("phase")
	}
	return &Scope{Campaign: cc.Campaign, Phase: phase, Files: cc.Files}, nil
}

// IsVerification reports whether validator columns are emitted.
func (s *Scope) IsVerification() bool {
	return s.Phase.Phase == entities.PhaseVerification
}

// PhaseIDs returns the phases whose results are reported.
func (s *Scope) PhaseIDs() []uint {
	ids := []uint{s.Phase.ID}
	if s.IsVerification() {
		if annotation := campaign.PhaseOf(s.Campaign, entities.PhaseAnnotation); annotation != nil {
			ids = append(ids, annotation.ID)
		}
	}
	return ids
}

// Filename returns the attachment name of a report, e.g.
// "Test campaign_annotation_results.csv".
func (s *Scope) Filename(kind, ext string) string {
	return s.Campaign.Name + "_" + s.Phase.Phase.Slug() + "_" + kind + "." + ext
}

// sortNames sorts names case-insensitively, ties broken by the raw value.
func sortNames(names []string) {
	fold := cases.Fold()
	slices.SortFunc(names, func(a, b string) int {
		if c := strings.Compare(fold.String(a), fold.String(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}
