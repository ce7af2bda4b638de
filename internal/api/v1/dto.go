package v1

import (
	"time"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/report"
)

// UserResponse is the public view of an account.
type UserResponse struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	IsStaff        bool   `json:"is_staff"`
	IsSuperuser    bool   `json:"is_superuser"`
	ExpertiseLevel string `json:"expertise_level,omitempty"`
}

func newUserResponse(u *entities.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		IsStaff:        u.IsStaff,
		IsSuperuser:    u.IsSuperuser,
		ExpertiseLevel: u.Expertise(),
	}
}

// LoginResponse carries an issued token.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user"`
}

// DatasetResponse describes a dataset.
type DatasetResponse struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	FileType     string    `json:"file_type,omitempty"`
	SampleRate   float64   `json:"sample_rate"`
	FileDuration float64   `json:"file_duration"`
	FilesCount   int64     `json:"files_count"`
	CreatedAt    time.Time `json:"created_at"`
}

func newDatasetResponse(d *entities.Dataset, filesCount int64) DatasetResponse {
	out := DatasetResponse{
		ID:         d.ID,
		Name:       d.Name,
		Path:       d.Path,
		FileType:   d.FileType,
		FilesCount: filesCount,
		CreatedAt:  d.CreatedAt,
	}
	if d.AudioMetadata != nil {
		out.SampleRate = d.AudioMetadata.SampleRate
		out.FileDuration = d.AudioMetadata.FileDuration
	}
	return out
}

// FileResponse describes a dataset file and its position in a sorted list.
type FileResponse struct {
	ID       uint      `json:"id"`
	Index    int       `json:"index"`
	Dataset  string    `json:"dataset,omitempty"`
	Filename string    `json:"filename"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration float64   `json:"duration"`
}

func newFileResponse(f *entities.DatasetFile, index int) FileResponse {
	out := FileResponse{
		ID:       f.ID,
		Index:    index,
		Filename: f.Filename,
		Start:    f.Start,
		End:      f.End,
		Duration: f.Duration(),
	}
	if f.Dataset != nil {
		out.Dataset = f.Dataset.Name
	}
	return out
}

// LabelSetResponse describes a label set.
type LabelSetResponse struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
}

func newLabelSetResponse(s *entities.LabelSet) *LabelSetResponse {
	if s == nil {
		return nil
	}
	out := &LabelSetResponse{ID: s.ID, Name: s.Name, Description: s.Description, Labels: make([]string, 0, len(s.Labels))}
	for i := range s.Labels {
		out.Labels = append(out.Labels, s.Labels[i].Name)
	}
	return out
}

// ConfidenceIndicatorResponse is one level of a confidence set.
type ConfidenceIndicatorResponse struct {
	Label     string `json:"label"`
	Level     int    `json:"level"`
	IsDefault bool   `json:"is_default"`
}

// ConfidenceSetResponse describes a confidence indicator set.
type ConfidenceSetResponse struct {
	ID          uint                          `json:"id"`
	Name        string                        `json:"name"`
	Description string                        `json:"description"`
	MaxLevel    int                           `json:"max_level"`
	Indicators  []ConfidenceIndicatorResponse `json:"confidence_indicators"`
}

func newConfidenceSetResponse(s *entities.ConfidenceIndicatorSet) *ConfidenceSetResponse {
	if s == nil {
		return nil
	}
	out := &ConfidenceSetResponse{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		MaxLevel:    s.MaxLevel(),
		Indicators:  make([]ConfidenceIndicatorResponse, 0, len(s.Indicators)),
	}
	for _, ind := range s.Indicators {
		out.Indicators = append(out.Indicators, ConfidenceIndicatorResponse{Label: ind.Label, Level: ind.Level, IsDefault: ind.IsDefault})
	}
	return out
}

// DetectorConfigurationResponse is one configuration of a detector.
type DetectorConfigurationResponse struct {
	ID            uint   `json:"id"`
	Configuration string `json:"configuration"`
}

// DetectorResponse describes a detector.
type DetectorResponse struct {
	ID             uint                            `json:"id"`
	Name           string                          `json:"name"`
	Configurations []DetectorConfigurationResponse `json:"configurations"`
}

// PhaseResponse describes a campaign phase.
type PhaseResponse struct {
	ID        uint       `json:"id"`
	Phase     string     `json:"phase"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at"`
	IsOpen    bool       `json:"is_open"`
}

func newPhaseResponse(p *entities.AnnotationCampaignPhase) PhaseResponse {
	return PhaseResponse{
		ID:        p.ID,
		Phase:     string(p.Phase),
		CreatedAt: p.CreatedAt,
		EndedAt:   p.EndedAt,
		IsOpen:    p.IsOpen(),
	}
}

// CampaignResponse is the list view of a campaign.
type CampaignResponse struct {
	ID                   uint            `json:"id"`
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	InstructionsURL      string          `json:"instructions_url,omitempty"`
	Deadline             *time.Time      `json:"deadline"`
	Owner                string          `json:"owner"`
	AnnotationScope      string          `json:"annotation_scope"`
	AllowPointAnnotation bool            `json:"allow_point_annotation"`
	IsArchived           bool            `json:"is_archived"`
	ArchivedAt           *time.Time      `json:"archived_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	Phases               []PhaseResponse `json:"phases"`
}

func newCampaignResponse(c *entities.AnnotationCampaign) CampaignResponse {
	out := CampaignResponse{
		ID:                   c.ID,
		Name:                 c.Name,
		Description:          c.Description,
		InstructionsURL:      c.InstructionsURL,
		Deadline:             c.Deadline,
		AnnotationScope:      string(c.AnnotationScope),
		AllowPointAnnotation: c.AllowPointAnnotation,
		IsArchived:           c.IsArchived(),
		CreatedAt:            c.CreatedAt,
		Phases:               make([]PhaseResponse, 0, len(c.Phases)),
	}
	if c.Owner != nil {
		out.Owner = c.Owner.Username
	}
	if c.Archive != nil {
		out.ArchivedAt = &c.Archive.Date
	}
	for i := range c.Phases {
		out.Phases = append(out.Phases, newPhaseResponse(&c.Phases[i]))
	}
	return out
}

// CampaignDetailResponse adds vocabularies, datasets and progress.
type CampaignDetailResponse struct {
	CampaignResponse
	LabelSet      *LabelSetResponse           `json:"label_set"`
	ConfidenceSet *ConfidenceSetResponse      `json:"confidence_indicator_set"`
	Datasets      []string                    `json:"datasets"`
	FilesCount    int                         `json:"files_count"`
	Progress      map[string]*report.Progress `json:"progress"`
}

func newCampaignDetailResponse(cc *campaign.Context, progress map[entities.PhaseType]*report.Progress) CampaignDetailResponse {
	c := cc.Campaign
	out := CampaignDetailResponse{
		CampaignResponse: newCampaignResponse(c),
		LabelSet:         newLabelSetResponse(c.LabelSet),
		ConfidenceSet:    newConfidenceSetResponse(c.ConfidenceIndicatorSet),
		Datasets:         make([]string, 0, len(c.Datasets)),
		FilesCount:       cc.TotalFiles(),
		Progress:         make(map[string]*report.Progress, len(progress)),
	}
	for i := range c.Datasets {
		out.Datasets = append(out.Datasets, c.Datasets[i].Name)
	}
	for phase, p := range progress {
		out.Progress[phase.Slug()] = p
	}
	return out
}

// FileRangeResponse describes a stored file range.
type FileRangeResponse struct {
	ID             uint      `json:"id"`
	AnnotatorID    uint      `json:"annotator"`
	Annotator      string    `json:"annotator_username,omitempty"`
	FirstFileIndex int       `json:"first_file_index"`
	LastFileIndex  int       `json:"last_file_index"`
	FromDatetime   time.Time `json:"from_datetime"`
	ToDatetime     time.Time `json:"to_datetime"`
	FilesCount     int       `json:"files_count"`
}

func newFileRangeResponses(ranges []entities.AnnotationFileRange) []FileRangeResponse {
	out := make([]FileRangeResponse, 0, len(ranges))
	for i := range ranges {
		r := &ranges[i]
		item := FileRangeResponse{
			ID:             r.ID,
			AnnotatorID:    r.AnnotatorID,
			FirstFileIndex: r.FirstFileIndex,
			LastFileIndex:  r.LastFileIndex,
			FromDatetime:   r.FromDatetime,
			ToDatetime:     r.ToDatetime,
			FilesCount:     r.FilesCount,
		}
		if r.Annotator != nil {
			item.Annotator = r.Annotator.Username
		}
		out = append(out, item)
	}
	return out
}

// ReconcileResponse is the outcome of a range submission.
type ReconcileResponse struct {
	Data         []FileRangeResponse `json:"data"`
	Created      int                 `json:"created"`
	Updated      int                 `json:"updated"`
	Deleted      int                 `json:"deleted"`
	TasksCreated int64               `json:"tasks_created"`
	TasksDeleted int64               `json:"tasks_deleted"`
}

// TaskResponse is one task of the caller.
type TaskResponse struct {
	ID     uint         `json:"id"`
	Status string       `json:"status"`
	File   FileResponse `json:"file"`
}

// CommentResponse is a task or result comment.
type CommentResponse struct {
	ID        uint      `json:"id"`
	Comment   string    `json:"comment"`
	Author    uint      `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

func newCommentResponses(comments []entities.AnnotationComment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, CommentResponse{ID: c.ID, Comment: c.Comment, Author: c.AuthorID, CreatedAt: c.CreatedAt})
	}
	return out
}

// ValidationResultResponse is a verdict on a result.
type ValidationResultResponse struct {
	Annotator uint `json:"annotator"`
	IsValid   bool `json:"is_valid"`
}

// ResultResponse describes an annotation result.
type ResultResponse struct {
	ID                  uint                       `json:"id"`
	Type                string                     `json:"type"`
	Label               string                     `json:"label"`
	ConfidenceIndicator *string                    `json:"confidence_indicator"`
	StartTime           *float64                   `json:"start_time"`
	EndTime             *float64                   `json:"end_time"`
	StartFrequency      *float64                   `json:"start_frequency"`
	EndFrequency        *float64                   `json:"end_frequency"`
	IsUpdateOf          *uint                      `json:"is_update_of"`
	Annotator           *uint                      `json:"annotator"`
	Detector            string                     `json:"detector,omitempty"`
	Comments            []CommentResponse          `json:"comments"`
	Validations         []ValidationResultResponse `json:"validations"`
}

func newResultResponses(results []entities.AnnotationResult) []ResultResponse {
	out := make([]ResultResponse, 0, len(results))
	for i := range results {
		r := &results[i]
		item := ResultResponse{
			ID:             r.ID,
			Type:           string(r.Type),
			StartTime:      r.StartTime,
			EndTime:        r.EndTime,
			StartFrequency: r.StartFrequency,
			EndFrequency:   r.EndFrequency,
			IsUpdateOf:     r.IsUpdateOfID,
			Annotator:      r.AnnotatorID,
			Comments:       newCommentResponses(r.Comments),
			Validations:    make([]ValidationResultResponse, 0, len(r.Validations)),
		}
		if r.Label != nil {
			item.Label = r.Label.Name
		}
		if r.ConfidenceIndicator != nil {
			item.ConfidenceIndicator = &r.ConfidenceIndicator.Label
		}
		if r.DetectorConfiguration != nil && r.DetectorConfiguration.Detector != nil {
			item.Detector = r.DetectorConfiguration.Detector.Name
		}
		for _, v := range r.Validations {
			item.Validations = append(item.Validations, ValidationResultResponse{Annotator: v.AnnotatorID, IsValid: v.IsValid})
		}
		out = append(out, item)
	}
	return out
}

// FileResultsResponse is the caller's work on one file.
type FileResultsResponse struct {
	Status       string            `json:"status"`
	Results      []ResultResponse  `json:"results"`
	TaskComments []CommentResponse `json:"task_comments"`
	Reviewed     []ResultResponse  `json:"reviewed,omitempty"`
}
