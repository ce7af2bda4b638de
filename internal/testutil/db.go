package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

// Fixture timeline: files are contiguous, one minute long, starting at FixtureStart.
const (
	FixtureFileDuration = time.Minute
	FixtureSampleRate   = 32000
	FixturePassword     = "password"
)

// FixtureStart is the start of the first fixture file.
var FixtureStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Fixture is a campaign with one dataset, vocabularies and an open ANNOTATION phase.
type Fixture struct {
	DB            *gorm.DB
	Owner         *entities.User
	Staff         *entities.User
	Annotator     *entities.User
	Dataset       *entities.Dataset
	Files         []entities.DatasetFile
	LabelSet      *entities.LabelSet
	ConfidenceSet *entities.ConfidenceIndicatorSet
	Campaign      *entities.AnnotationCampaign
	Phase         *entities.AnnotationCampaignPhase
}

// NewDB opens a migrated in-memory SQLite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=ON"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// Each connection to :memory: is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, datastore.Migrate(db))
	return db
}

// NewFixture creates a fixture whose dataset holds fileCount files.
func NewFixture(t testing.TB, fileCount int) *Fixture {
	t.Helper()
	return NewFixtureOn(t, NewDB(t), fileCount)
}

// NewFixtureOn seeds the fixture into an already migrated database.
func NewFixtureOn(t testing.TB, db *gorm.DB, fileCount int) *Fixture {
	t.Helper()

	f := &Fixture{DB: db}

	f.Owner = AddUser(t, db, "owner", false)
	f.Staff = AddUser(t, db, "staff", true)
	f.Annotator = AddUser(t, db, "annotator", false)
	f.Dataset, f.Files = AddDataset(t, db, "gliderSPAmsDemo", fileCount, FixtureStart)

	labels := []entities.Label{{Name: "Buzz"}, {Name: "Click"}, {Name: "Whistle"}}
	f.LabelSet = &entities.LabelSet{Name: "Test SPM campaign", Labels: labels}
	require.NoError(t, db.Create(f.LabelSet).Error)

	f.ConfidenceSet = &entities.ConfidenceIndicatorSet{
		Name: "Confident/not confident",
		Indicators: []entities.ConfidenceIndicator{
			{Label: "not confident", Level: 0},
			{Label: "confident", Level: 1, IsDefault: true},
		},
	}
	require.NoError(t, db.Create(f.ConfidenceSet).Error)

	f.Campaign = &entities.AnnotationCampaign{
		Name:                     "Test campaign",
		OwnerID:                  f.Owner.ID,
		LabelSetID:               f.LabelSet.ID,
		ConfidenceIndicatorSetID: &f.ConfidenceSet.ID,
		AnnotationScope:          entities.ScopeRectangle,
		AllowPointAnnotation:     true,
	}
	require.NoError(t, db.Omit("Datasets.*").Create(f.Campaign).Error)
	require.NoError(t, db.Model(f.Campaign).Omit("Datasets.*").Association("Datasets").Append(f.Dataset))

	f.Phase = f.AddPhase(t, entities.PhaseAnnotation)
	return f
}

// AddUser creates a user whose password is FixturePassword.
func AddUser(t testing.TB, db *gorm.DB, username string, staff bool) *entities.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(FixturePassword), bcrypt.MinCost)
	require.NoError(t, err)
	expertise := entities.ExpertiseAverage
	user := &entities.User{
		Username:       username,
		Email:          username + "@example.org",
		PasswordHash:   string(hash),
		IsStaff:        staff,
		ExpertiseLevel: &expertise,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// AddDataset creates a dataset of contiguous one minute files starting at start.
func AddDataset(t testing.TB, db *gorm.DB, name string, fileCount int, start time.Time) (*entities.Dataset, []entities.DatasetFile) {
	t.Helper()
	end := start.Add(time.Duration(fileCount) * FixtureFileDuration)
	dataset := &entities.Dataset{
		Name:     name,
		Path:     "/data/" + name,
		FileType: ".wav",
		AudioMetadata: &entities.AudioMetadata{
			SampleRate:   FixtureSampleRate,
			SampleBits:   16,
			ChannelCount: 1,
			FileDuration: FixtureFileDuration.Seconds(),
			Start:        &start,
			End:          &end,
		},
	}
	require.NoError(t, db.Create(dataset).Error)

	files := make([]entities.DatasetFile, fileCount)
	for i := range files {
		fileStart := start.Add(time.Duration(i) * FixtureFileDuration)
		files[i] = entities.DatasetFile{
			DatasetID: dataset.ID,
			Filename:  fmt.Sprintf("sound%03d.wav", i),
			Filepath:  fmt.Sprintf("%s/sound%03d.wav", dataset.Path, i),
			Start:     fileStart,
			End:       fileStart.Add(FixtureFileDuration),
		}
	}
	if fileCount > 0 {
		require.NoError(t, db.Create(&files).Error)
	}
	for i := range files {
		files[i].Dataset = dataset
	}
	return dataset, files
}

// AddPhase creates an open phase of the fixture campaign and appends it to
// f.Campaign.Phases.
func (f *Fixture) AddPhase(t testing.TB, phase entities.PhaseType) *entities.AnnotationCampaignPhase {
	t.Helper()
	p := &entities.AnnotationCampaignPhase{
		CampaignID:  f.Campaign.ID,
		Phase:       phase,
		CreatedByID: f.Owner.ID,
	}
	require.NoError(t, f.DB.Create(p).Error)
	f.Campaign.Phases = append(f.Campaign.Phases, *p)
	return p
}

// AddRange stores a range directly, bypassing reconciliation.
func (f *Fixture) AddRange(t testing.TB, phase *entities.AnnotationCampaignPhase, annotator *entities.User, first, last int) *entities.AnnotationFileRange {
	t.Helper()
	r := &entities.AnnotationFileRange{
		PhaseID:        phase.ID,
		AnnotatorID:    annotator.ID,
		FirstFileIndex: first,
		LastFileIndex:  last,
		FromDatetime:   f.Files[first].Start,
		ToDatetime:     f.Files[last].End,
		FilesCount:     last - first + 1,
	}
	require.NoError(t, f.DB.Create(r).Error)
	return r
}

// AddTask stores a task directly.
func (f *Fixture) AddTask(t testing.TB, phase *entities.AnnotationCampaignPhase, annotator *entities.User, fileIndex int, status entities.TaskStatus) *entities.AnnotationTask {
	t.Helper()
	task := &entities.AnnotationTask{
		PhaseID:       phase.ID,
		AnnotatorID:   annotator.ID,
		DatasetFileID: f.Files[fileIndex].ID,
		Status:        status,
	}
	require.NoError(t, f.DB.Create(task).Error)
	return task
}

// Label returns the fixture label with the given name.
func (f *Fixture) Label(t testing.TB, name string) *entities.Label {
	t.Helper()
	for i := range f.LabelSet.Labels {
		if f.LabelSet.Labels[i].Name == name {
			return &f.LabelSet.Labels[i]
		}
	}
	require.Failf(t, "unknown fixture label", "label %q", name)
	return nil
}
