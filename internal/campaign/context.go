// Package campaign loads annotation campaigns into an explicit Context and
// manages the phase and archive lifecycle.
package campaign

import (
	"fmt"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// Context is everything a mutation on a campaign needs: the campaign, the
// phase being worked on (nil for campaign level operations), the sorted file
// list and the acting user.
//
// Files is shared with the file cache and must not be modified.
type Context struct {
	Campaign *entities.AnnotationCampaign
	Phase    *entities.AnnotationCampaignPhase
	Files    []entities.DatasetFile
	User     *entities.User

	fileIndex map[uint]int
}

// NewContext indexes files, which must be sorted by (start, id).
func NewContext(c *entities.AnnotationCampaign, phase *entities.AnnotationCampaignPhase, files []entities.DatasetFile, user *entities.User) *Context {
	index := make(map[uint]int, len(files))
	for i := range files {
		index[files[i].ID] = i
	}
	return &Context{
		Campaign:  c,
		Phase:     phase,
		Files:     files,
		User:      user,
		fileIndex: index,
	}
}

// TotalFiles returns the number of files of the campaign.
func (c *Context) TotalFiles() int {
	return len(c.Files)
}

// FileIndex returns the position of a file in the sorted list.
func (c *Context) FileIndex(fileID uint) (int, bool) {
	i, ok := c.fileIndex[fileID]
	return i, ok
}

// File returns a file of the campaign by ID.
func (c *Context) File(fileID uint) (*entities.DatasetFile, bool) {
	i, ok := c.fileIndex[fileID]
	if !ok {
		return nil, false
	}
	return &c.Files[i], true
}

// DatasetIDs returns the IDs of the campaign datasets.
func (c *Context) DatasetIDs() []uint {
	return DatasetIDs(c.Campaign)
}

// DatasetIDs returns the IDs of the loaded datasets of a campaign.
func DatasetIDs(c *entities.AnnotationCampaign) []uint {
	ids := make([]uint, 0, len(c.Datasets))
	for i := range c.Datasets {
		ids = append(ids, c.Datasets[i].ID)
	}
	return ids
}

// PhaseOf returns the loaded phase of the given type, or nil.
func PhaseOf(c *entities.AnnotationCampaign, phaseType entities.PhaseType) *entities.AnnotationCampaignPhase {
	for i := range c.Phases {
		if c.Phases[i].Phase == phaseType {
			return &c.Phases[i]
		}
	}
	return nil
}

// IsOwnerOrAdmin reports whether the user owns the campaign or is staff.
func (c *Context) IsOwnerOrAdmin() bool {
	if c.User == nil {
		return false
	}
	return c.User.IsAdmin() || c.User.ID == c.Campaign.OwnerID
}

// CheckManage verifies that the user may change ranges, phases or imports:
// owner or staff, campaign not archived and, when a phase is set, phase open.
func (c *Context) CheckManage() error {
	if !c.IsOwnerOrAdmin() {
		return errors.ForbiddenError("only the campaign owner or staff can manage this campaign")
	}
	return c.CheckWritable()
}

// CheckWritable verifies that the campaign and phase accept mutations.
func (c *Context) CheckWritable() error {
	if c.Campaign.IsArchived() {
		return errors.New(fmt.Errorf("campaign %q is archived", c.Campaign.Name)).
			Category(errors.CategoryForbidden).
			Context("campaign_id", c.Campaign.ID).
			Build()
	}
	if c.Phase != nil && !c.Phase.IsOpen() {
		return errors.New(fmt.Errorf("%s phase has ended", c.Phase.Phase.Slug())).
			Category(errors.CategoryForbidden).
			Context("campaign_id", c.Campaign.ID).
			Context("phase_id", c.Phase.ID).
			Build()
	}
	return nil
}

// RequirePhase returns an error when the context has no phase.
func (c *Context) RequirePhase() error {
	if c.Phase == nil {
		return errors.NotFoundError("phase")
	}
	return nil
}
