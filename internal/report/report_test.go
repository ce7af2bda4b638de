package report_test

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/report"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/testutil"
)

func f64(v float64) *float64 { return &v }

type resultSpec struct {
	file   int
	label  string
	user   *entities.User
	bounds [4]*float64
}

func addResult(t *testing.T, f *testutil.Fixture, phase *entities.AnnotationCampaignPhase, rs resultSpec) *entities.AnnotationResult {
	t.Helper()
	r := &entities.AnnotationResult{
		PhaseID:               phase.ID,
		DatasetFileID:         f.Files[rs.file].ID,
		LabelID:               f.Label(t, rs.label).ID,
		ConfidenceIndicatorID: &f.ConfidenceSet.Indicators[1].ID,
		AnnotatorID:           &rs.user.ID,
		StartTime:             rs.bounds[0],
		EndTime:               rs.bounds[1],
		StartFrequency:        rs.bounds[2],
		EndFrequency:          rs.bounds[3],
	}
	r.DeriveType()
	require.NoError(t, f.DB.Create(r).Error)
	return r
}

func addComment(t *testing.T, f *testutil.Fixture, phase *entities.AnnotationCampaignPhase, file int, author *entities.User, text string, result *entities.AnnotationResult) {
	t.Helper()
	c := &entities.AnnotationComment{
		Comment:       text,
		PhaseID:       phase.ID,
		DatasetFileID: f.Files[file].ID,
		AuthorID:      author.ID,
	}
	if result != nil {
		c.AnnotationResultID = &result.ID
	}
	require.NoError(t, f.DB.Create(c).Error)
}

func scopeOf(t *testing.T, f *testutil.Fixture, phase entities.PhaseType) *report.Scope {
	t.Helper()
	cc, err := campaign.NewService(f.DB, nil, nil).Load(context.Background(), f.Campaign.ID, phase, f.Owner)
	require.NoError(t, err)
	scope, err := report.ScopeOf(cc)
	require.NoError(t, err)
	return scope
}

func column(t *testing.T, table *report.Table, row int, name string) string {
	t.Helper()
	for i, h := range table.Header {
		if h == name {
			return table.Rows[row][i]
		}
	}
	require.Failf(t, "unknown column", "%s", name)
	return ""
}

func TestProgressCounts(t *testing.T) {
	f := testutil.NewFixture(t, 10)
	agg := report.NewAggregator(f.DB, nil)
	ctx := context.Background()

	p, err := agg.ProgressCounts(ctx, f.Phase.ID, &f.Annotator.ID)
	require.NoError(t, err)
	assert.Equal(t, report.Progress{}, *p, "totals are zero without ranges")

	f.AddRange(t, f.Phase, f.Annotator, 0, 5)
	f.AddRange(t, f.Phase, f.Owner, 0, 1)
	f.AddTask(t, f.Phase, f.Annotator, 0, entities.TaskFinished)
	f.AddTask(t, f.Phase, f.Annotator, 1, entities.TaskCreated)
	f.AddTask(t, f.Phase, f.Owner, 0, entities.TaskFinished)

	p, err = agg.ProgressCounts(ctx, f.Phase.ID, &f.Annotator.ID)
	require.NoError(t, err)
	assert.Equal(t, report.Progress{GlobalTotal: 8, GlobalProgress: 2, UserTotal: 6, UserProgress: 1}, *p)

	p, err = agg.ProgressCounts(ctx, f.Phase.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, p.UserTotal)

	all, err := agg.CampaignProgress(ctx, f.Campaign, nil)
	require.NoError(t, err)
	require.Contains(t, all, entities.PhaseAnnotation)
	assert.EqualValues(t, 8, all[entities.PhaseAnnotation].GlobalTotal)
}

func TestReportRowsAndOrder(t *testing.T) {
	f := testutil.NewFixture(t, 3)
	weak := addResult(t, f, f.Phase, resultSpec{file: 1, label: "Click", user: f.Annotator})
	box := addResult(t, f, f.Phase, resultSpec{file: 0, label: "Buzz", user: f.Annotator,
		bounds: [4]*float64{f64(1.5), f64(3.25), f64(100), f64(2000)}})
	point := addResult(t, f, f.Phase, resultSpec{file: 0, label: "Whistle", user: f.Owner,
		bounds: [4]*float64{f64(10), nil, f64(500), nil}})
	addComment(t, f, f.Phase, 0, f.Annotator, "faint", box)
	addComment(t, f, f.Phase, 0, f.Owner, "agreed", box)
	addComment(t, f, f.Phase, 2, f.Annotator, "only noise", nil)

	table, err := report.NewAggregator(f.DB, nil).Report(context.Background(), scopeOf(t, f, entities.PhaseAnnotation))
	require.NoError(t, err)

	assert.Equal(t, report.ReportHeader, table.Header)
	require.Len(t, table.Rows, 4, "three results and one task comment")
	for _, row := range table.Rows {
		assert.Len(t, row, len(table.Header))
	}

	ids := []string{column(t, table, 0, "annotation_id"), column(t, table, 1, "annotation_id"), column(t, table, 2, "annotation_id")}
	assert.Equal(t, []string{idString(box.ID), idString(point.ID), idString(weak.ID)}, ids)

	assert.Equal(t, "gliderSPAmsDemo", column(t, table, 0, "dataset"))
	assert.Equal(t, "sound000.wav", column(t, table, 0, "filename"))
	assert.Equal(t, "1.5", column(t, table, 0, "start_time"))
	assert.Equal(t, "3.25", column(t, table, 0, "end_time"))
	assert.Equal(t, "2024-01-01T00:00:01.500+00:00", column(t, table, 0, "start_datetime"))
	assert.Equal(t, "2024-01-01T00:00:03.250+00:00", column(t, table, 0, "end_datetime"))
	assert.Equal(t, "1", column(t, table, 0, "is_box"))
	assert.Equal(t, "BOX", column(t, table, 0, "type"))
	assert.Equal(t, "Buzz", column(t, table, 0, "annotation"))
	assert.Equal(t, "annotator", column(t, table, 0, "annotator"))
	assert.Equal(t, "AVERAGE", column(t, table, 0, "annotator_expertise"))
	assert.Equal(t, "confident", column(t, table, 0, "confidence_indicator_label"))
	assert.Equal(t, "1/1", column(t, table, 0, "confidence_indicator_level"))
	assert.Equal(t, "faint |- annotator; agreed |- owner", column(t, table, 0, "comments"))

	assert.Equal(t, "10", column(t, table, 1, "end_time"), "points end where they start")
	assert.Equal(t, "500", column(t, table, 1, "end_frequency"))
	assert.Equal(t, "1", column(t, table, 1, "is_box"))

	assert.Equal(t, "0", column(t, table, 2, "start_time"))
	assert.Equal(t, "60", column(t, table, 2, "end_time"))
	assert.Equal(t, "0", column(t, table, 2, "start_frequency"))
	assert.Equal(t, "16000", column(t, table, 2, "end_frequency"))
	assert.Equal(t, "0", column(t, table, 2, "is_box"))
	assert.Equal(t, "2024-01-01T00:01:00.000+00:00", column(t, table, 2, "start_datetime"))
	assert.Equal(t, "2024-01-01T00:02:00.000+00:00", column(t, table, 2, "end_datetime"))

	assert.Equal(t, "sound002.wav", column(t, table, 3, "filename"))
	assert.Equal(t, "only noise |- annotator", column(t, table, 3, "comments"))
	assert.Equal(t, "annotator", column(t, table, 3, "annotator"))
	assert.Empty(t, column(t, table, 3, "annotation_id"))
	assert.Empty(t, column(t, table, 3, "annotation"))
}

func TestReportFullFileBoxIsNotBox(t *testing.T) {
	f := testutil.NewFixture(t, 1)
	addResult(t, f, f.Phase, resultSpec{file: 0, label: "Buzz", user: f.Annotator,
		bounds: [4]*float64{f64(0), f64(60), f64(0), f64(16000)}})

	table, err := report.NewAggregator(f.DB, nil).Report(context.Background(), scopeOf(t, f, entities.PhaseAnnotation))
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "0", column(t, table, 0, "is_box"))
	assert.Equal(t, "BOX", column(t, table, 0, "type"))
}

func TestVerificationReportValidatorColumns(t *testing.T) {
	f := testutil.NewFixture(t, 2)
	bob := testutil.AddUser(t, f.DB, "bob", false)
	alice := testutil.AddUser(t, f.DB, "Alice", false)
	verification := f.AddPhase(t, entities.PhaseVerification)

	first := addResult(t, f, f.Phase, resultSpec{file: 0, label: "Buzz", user: f.Annotator})
	second := addResult(t, f, f.Phase, resultSpec{file: 1, label: "Click", user: f.Annotator})
	correction := addResult(t, f, verification, resultSpec{file: 1, label: "Whistle", user: bob})
	require.NoError(t, f.DB.Model(correction).Update("is_update_of_id", second.ID).Error)

	validations := []entities.AnnotationResultValidation{
		{ResultID: first.ID, AnnotatorID: bob.ID, PhaseID: verification.ID, IsValid: true},
		{ResultID: first.ID, AnnotatorID: alice.ID, PhaseID: verification.ID, IsValid: false},
		{ResultID: second.ID, AnnotatorID: bob.ID, PhaseID: verification.ID, IsValid: false},
	}
	require.NoError(t, f.DB.Create(&validations).Error)

	table, err := report.NewAggregator(f.DB, nil).Report(context.Background(), scopeOf(t, f, ""))
	require.NoError(t, err)

	assert.Equal(t, []string{"Alice", "bob"}, table.Header[len(report.ReportHeader):])
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "False", column(t, table, 0, "Alice"))
	assert.Equal(t, "True", column(t, table, 0, "bob"))
	assert.Empty(t, column(t, table, 1, "Alice"))
	assert.Equal(t, "False", column(t, table, 1, "bob"))
	assert.Equal(t, idString(second.ID), column(t, table, 2, "is_update_of"))
	assert.Empty(t, column(t, table, 2, "bob"))
}

func TestStatus(t *testing.T) {
	f := testutil.NewFixture(t, 4)
	zed := testutil.AddUser(t, f.DB, "Zed", false)
	f.AddRange(t, f.Phase, f.Annotator, 0, 2)
	f.AddRange(t, f.Phase, zed, 3, 3)
	f.AddTask(t, f.Phase, f.Annotator, 1, entities.TaskFinished)
	f.AddTask(t, f.Phase, zed, 3, entities.TaskCreated)

	table, err := report.NewAggregator(f.DB, nil).Status(context.Background(), scopeOf(t, f, entities.PhaseAnnotation))
	require.NoError(t, err)

	assert.Equal(t, []string{"dataset", "filename", "annotator", "Zed"}, table.Header)
	assert.Equal(t, [][]string{
		{"gliderSPAmsDemo", "sound000.wav", report.StatusCreated, report.StatusUnassigned},
		{"gliderSPAmsDemo", "sound001.wav", report.StatusFinished, report.StatusUnassigned},
		{"gliderSPAmsDemo", "sound002.wav", report.StatusCreated, report.StatusUnassigned},
		{"gliderSPAmsDemo", "sound003.wav", report.StatusUnassigned, report.StatusCreated},
	}, table.Rows)
}

func TestStatusCoversEveryFile(t *testing.T) {
	f := testutil.NewFixture(t, 2)
	other, _ := testutil.AddDataset(t, f.DB, "aDataset", 2, testutil.FixtureStart)
	require.NoError(t, f.DB.Model(f.Campaign).Omit("Datasets.*").Association("Datasets").Append(other))
	f.AddRange(t, f.Phase, f.Annotator, 0, 0)

	table, err := report.NewAggregator(f.DB, nil).Status(context.Background(), scopeOf(t, f, entities.PhaseAnnotation))
	require.NoError(t, err)

	require.Len(t, table.Rows, 4)
	assert.Equal(t, "aDataset", table.Rows[0][0])
	assert.Equal(t, "gliderSPAmsDemo", table.Rows[3][0])
	for _, row := range table.Rows {
		require.Len(t, row, 3)
		assert.Contains(t, []string{report.StatusFinished, report.StatusCreated, report.StatusUnassigned}, row[2])
	}
}

func TestWriteCSV(t *testing.T) {
	table := &report.Table{Header: []string{"a", "b"}, Rows: [][]string{{"1", "x"}, {"2", ""}}}
	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, table))
	assert.Equal(t, "a,b\n1,x\n2,\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	table := &report.Table{Header: []string{"dataset", "filename"}, Rows: [][]string{{"d", "sound000.wav"}}}
	var buf bytes.Buffer
	require.NoError(t, report.WriteXLSX(&buf, table, "status"))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("status")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"dataset", "filename"}, {"d", "sound000.wav"}}, rows)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.NewStd("disk full") }

func TestWriteFailuresAreReportErrors(t *testing.T) {
	table := &report.Table{Header: []string{"a"}, Rows: [][]string{{"1"}}}

	err := report.WriteCSV(brokenWriter{}, table)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryReport))

	err = report.WriteXLSX(brokenWriter{}, table, "results")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryReport))
}

func TestScopeFilename(t *testing.T) {
	f := testutil.NewFixture(t, 1)
	name := scopeOf(t, f, entities.PhaseAnnotation).Filename("status", "csv")
	assert.True(t, strings.HasSuffix(name, "_annotation_status.csv"), name)
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
