package importer

import (
	"context"

	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/repository"
)

// vocabulary resolves the labels and confidence indicators of an import,
// and remembers the sets the campaign must point to after commit.
type vocabulary struct {
	labels      map[string]uint
	confidences map[string]uint

	labelSet      *entities.LabelSet
	confidenceSet *entities.ConfidenceIndicatorSet
	changed       bool
}

// provision adds the labels and confidence indicators the plans need to the
// campaign sets. A set shared with another campaign is cloned first so the
// other campaigns keep their vocabulary.
func provision(ctx context.Context, tx *gorm.DB, c *entities.AnnotationCampaign, plans []*plannedRow, out *Outcome) (*vocabulary, error) {
	repo := repository.NewVocabularyRepository(tx)
	v := &vocabulary{
		labels:        make(map[string]uint),
		confidences:   make(map[string]uint),
		labelSet:      c.LabelSet,
		confidenceSet: c.ConfidenceIndicatorSet,
	}
	for _, l := range v.labelSet.Labels {
		v.labels[l.Name] = l.ID
	}
	if v.confidenceSet != nil {
		v.indexConfidences()
	}

	var missingLabels []string
	var missingConfidences []confidenceRef
	seen := map[string]bool{}
	for _, plan := range plans {
		if _, ok := v.labels[plan.label]; !ok && !seen["l:"+plan.label] {
			seen["l:"+plan.label] = true
			missingLabels = append(missingLabels, plan.label)
		}
		if ref := plan.confidence; ref != nil {
			if _, ok := v.confidences[ref.Label]; !ok && !seen["c:"+ref.Label] {
				seen["c:"+ref.Label] = true
				missingConfidences = append(missingConfidences, *ref)
			}
		}
	}

	if len(missingLabels) > 0 {
		shared, err := repo.CountCampaignsUsingLabelSet(ctx, v.labelSet.ID)
		if err != nil {
			return nil, err
		}
		if shared > 1 {
			if v.labelSet, err = repo.CloneLabelSet(ctx, v.labelSet); err != nil {
				return nil, err
			}
			out.LabelSetCloned = true
			v.changed = true
		}
		for _, name := range missingLabels {
			label, err := repo.GetOrCreateLabel(ctx, name)
			if err != nil {
				return nil, err
			}
			if err := repo.AddLabelToSet(ctx, v.labelSet, label); err != nil {
				return nil, err
			}
			v.labels[name] = label.ID
		}
	}

	if len(missingConfidences) > 0 {
		switch {
		case v.confidenceSet == nil:
			v.confidenceSet = &entities.ConfidenceIndicatorSet{
				Name:        c.Name + " confidence",
				Description: "Created by result import",
			}
			if err := repo.CreateConfidenceSet(ctx, v.confidenceSet); err != nil {
				return nil, err
			}
			out.ConfidenceSetCreated = true
			v.changed = true
		default:
			shared, err := repo.CountCampaignsUsingConfidenceSet(ctx, v.confidenceSet.ID)
			if err != nil {
				return nil, err
			}
			if shared > 1 {
				if v.confidenceSet, err = repo.CloneConfidenceSet(ctx, v.confidenceSet); err != nil {
					return nil, err
				}
				v.indexConfidences()
				out.ConfidenceSetCloned = true
				v.changed = true
			}
		}
		for _, ref := range missingConfidences {
			indicator := &entities.ConfidenceIndicator{
				SetID: v.confidenceSet.ID,
				Label: ref.Label,
				Level: ref.Level,
			}
			if err := repo.AddConfidenceIndicator(ctx, indicator); err != nil {
				return nil, err
			}
			v.confidenceSet.Indicators = append(v.confidenceSet.Indicators, *indicator)
			v.confidences[ref.Label] = indicator.ID
		}
	}

	if v.changed {
		if err := repository.NewCampaignRepository(tx).SetVocabulary(ctx, c.ID, v.labelSet.ID, v.confidenceSetID()); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *vocabulary) indexConfidences() {
	clear(v.confidences)
	for _, ind := range v.confidenceSet.Indicators {
		v.confidences[ind.Label] = ind.ID
	}
}

func (v *vocabulary) confidenceSetID() *uint {
	if v.confidenceSet == nil {
		return nil
	}
	id := v.confidenceSet.ID
	return &id
}

// result builds the stored result of one piece.
func (v *vocabulary) result(phaseID, configurationID uint, plan *plannedRow, p Piece) entities.AnnotationResult {
	r := entities.AnnotationResult{
		PhaseID:                 phaseID,
		DatasetFileID:           p.File.ID,
		LabelID:                 v.labels[plan.label],
		DetectorConfigurationID: &configurationID,
		StartTime:               p.StartTime,
		EndTime:                 p.EndTime,
		StartFrequency:          p.StartFrequency,
		EndFrequency:            p.EndFrequency,
	}
	if plan.confidence != nil {
		id := v.confidences[plan.confidence.Label]
		r.ConfidenceIndicatorID = &id
	}
	r.DeriveType()
	return r
}

// apply points the loaded campaign at the sets used by the committed import.
func (v *vocabulary) apply(c *entities.AnnotationCampaign) {
	if !v.changed {
		return
	}
	c.LabelSetID = v.labelSet.ID
	c.LabelSet = v.labelSet
	c.ConfidenceIndicatorSetID = v.confidenceSetID()
	c.ConfidenceIndicatorSet = v.confidenceSet
}
