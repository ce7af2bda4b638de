package filerange_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/events"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/filerange"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/testutil"
)

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) TryPublish(e events.Event) bool {
	p.events = append(p.events, e)
	return true
}

func load(t *testing.T, f *testutil.Fixture, user *entities.User) *campaign.Context {
	t.Helper()
	cc, err := campaign.NewService(f.DB, nil, nil).Load(context.Background(), f.Campaign.ID, entities.PhaseAnnotation, user)
	require.NoError(t, err)
	return cc
}

func submit(t *testing.T, f *testutil.Fixture, desired []filerange.DesiredRange, annotators ...uint) *filerange.Outcome {
	t.Helper()
	outcome, err := filerange.NewReconciler(nil, nil, nil).
		Submit(context.Background(), f.DB, load(t, f, f.Owner), desired, annotators)
	require.NoError(t, err)
	return outcome
}

func ranges(t *testing.T, f *testutil.Fixture, annotator *entities.User) []entities.AnnotationFileRange {
	t.Helper()
	rs, err := filerange.ListRanges(context.Background(), f.DB, f.Phase.ID, &annotator.ID)
	require.NoError(t, err)
	return rs
}

func taskFiles(t *testing.T, f *testutil.Fixture, annotator *entities.User) []uint {
	t.Helper()
	var ids []uint
	require.NoError(t, f.DB.Model(&entities.AnnotationTask{}).
		Where("phase_id = ? AND annotator_id = ?", f.Phase.ID, annotator.ID).
		Order("dataset_file_id").
		Pluck("dataset_file_id", &ids).Error)
	return ids
}

func fileIDs(f *testutil.Fixture, first, last int) []uint {
	ids := make([]uint, 0, last-first+1)
	for i := first; i <= last; i++ {
		ids = append(ids, f.Files[i].ID)
	}
	return ids
}

func bounds(rs []entities.AnnotationFileRange) [][2]int {
	out := make([][2]int, len(rs))
	for i, r := range rs {
		out[i] = [2]int{r.FirstFileIndex, r.LastFileIndex}
	}
	return out
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := testutil.NewFixture(t, 10)
	desired := []filerange.DesiredRange{{AnnotatorID: f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 5}}

	first := submit(t, f, desired)
	assert.Equal(t, 1, first.Created)
	assert.EqualValues(t, 6, first.TasksCreated)

	stored := ranges(t, f, f.Annotator)
	require.Len(t, stored, 1)
	r := stored[0]
	assert.Equal(t, 6, r.FilesCount)
	assert.True(t, r.FromDatetime.Equal(f.Files[0].Start))
	assert.True(t, r.ToDatetime.Equal(f.Files[5].End))

	second := submit(t, f, desired)
	assert.Zero(t, second.Created)
	assert.Equal(t, 1, second.Updated)
	assert.Zero(t, second.Deleted)
	assert.Zero(t, second.TasksCreated)

	again := ranges(t, f, f.Annotator)
	require.Len(t, again, 1)
	assert.Equal(t, r.ID, again[0].ID)
	assert.Equal(t, r.FilesCount, again[0].FilesCount)
	assert.True(t, r.FromDatetime.Equal(again[0].FromDatetime))
	assert.True(t, r.ToDatetime.Equal(again[0].ToDatetime))
}

func TestReconcileMergesOverlappingRanges(t *testing.T) {
	f := testutil.NewFixture(t, 10)
	low := f.AddRange(t, f.Phase, f.Annotator, 0, 5)
	f.AddRange(t, f.Phase, f.Annotator, 6, 9)

	outcome := submit(t, f, []filerange.DesiredRange{{AnnotatorID: f.Annotator.ID, FirstFileIndex: 4, LastFileIndex: 7}})
	assert.Equal(t, 1, outcome.Updated)
	assert.Equal(t, 1, outcome.Deleted)

	stored := ranges(t, f, f.Annotator)
	require.Len(t, stored, 1)
	assert.Equal(t, low.ID, stored[0].ID)
	assert.Equal(t, [][2]int{{0, 9}}, bounds(stored))
	assert.Equal(t, 10, stored[0].FilesCount)
	assert.Equal(t, fileIDs(f, 0, 9), taskFiles(t, f, f.Annotator))
}

func TestReconcileMergesAdjacentRanges(t *testing.T) {
	f := testutil.NewFixture(t, 10)
	f.AddRange(t, f.Phase, f.Annotator, 0, 5)

	submit(t, f, []filerange.DesiredRange{{AnnotatorID: f.Annotator.ID, FirstFileIndex: 6, LastFileIndex: 7}})

	assert.Equal(t, [][2]int{{0, 7}}, bounds(ranges(t, f, f.Annotator)))
}

func TestReconcileShrinkDeletesOrphanTasks(t *testing.T) {
	f := testutil.NewFixture(t, 10)
	other := testutil.AddUser(t, f.DB, "other", false)

	outcome := submit(t, f, []filerange.DesiredRange{
		{AnnotatorID: f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 9},
		{AnnotatorID: other.ID, FirstFileIndex: 5, LastFileIndex: 9},
	})
	require.Len(t, outcome.Ranges, 2)
	assert.EqualValues(t, 15, outcome.TasksCreated)
	id := ranges(t, f, f.Annotator)[0].ID

	outcome = submit(t, f, []filerange.DesiredRange{{ID: &id, AnnotatorID: f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 4}})
	assert.EqualValues(t, 5, outcome.TasksDeleted)

	stored := ranges(t, f, f.Annotator)
	require.Len(t, stored, 1)
	assert.Equal(t, id, stored[0].ID)
	assert.Equal(t, 5, stored[0].FilesCount)
	assert.True(t, stored[0].ToDatetime.Equal(f.Files[4].End))
	assert.Equal(t, fileIDs(f, 0, 4), taskFiles(t, f, f.Annotator))
	assert.Equal(t, fileIDs(f, 5, 9), taskFiles(t, f, other), "other annotators keep their tasks")
}

func TestReconcileReplaceShrinksWithoutID(t *testing.T) {
	f := testutil.NewFixture(t, 10)
	first := submit(t, f, []filerange.DesiredRange{{AnnotatorID: f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 9}})
	require.EqualValues(t, 10, first.TasksCreated)
	id := ranges(t, f, f.Annotator)[0].ID

	outcome := submit(t, f, []filerange.DesiredRange{{AnnotatorID: f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 4}}, f.Annotator.ID)
	assert.Equal(t, 1, outcome.Updated)
	assert.Zero(t, outcome.Deleted)
	assert.EqualValues(t, 5, outcome.TasksDeleted)

	stored := ranges(t, f, f.Annotator)
	require.Len(t, stored, 1)
	assert.Equal(t, id, stored[0].ID)
	assert.Equal(t, [][2]int{{0, 4}}, bounds(stored))
	assert.Equal(t, fileIDs(f, 0, 4), taskFiles(t, f, f.Annotator))
}

func TestReconcileReplaceDropsUnlistedRanges(t *testing.T) {
	f := testutil.NewFixture(t, 10)
	f.AddRange(t, f.Phase, f.Annotator, 0, 2)
	kept := f.AddRange(t, f.Phase, f.Annotator, 6, 9)

	outcome := submit(t, f, []filerange.DesiredRange{{AnnotatorID: f.Annotator.ID, FirstFileIndex: 3, LastFileIndex: 8}}, f.Annotator.ID)
	assert.Equal(t, 1, outcome.Updated)
	assert.Equal(t, 1, outcome.Deleted)

	stored := ranges(t, f, f.Annotator)
	require.Len(t, stored, 1)
	assert.Equal(t, kept.ID, stored[0].ID)
	assert.Equal(t, [][2]int{{3, 8}}, bounds(stored))
}

func TestReconcileRejectsStaleStoredRange(t *testing.T) {
	f := testutil.NewFixture(t, 10)
	stale := &entities.AnnotationFileRange{
		PhaseID:        f.Phase.ID,
		AnnotatorID:    f.Annotator.ID,
		FirstFileIndex: 8,
		LastFileIndex:  12,
		FromDatetime:   f.Files[8].Start,
		ToDatetime:     f.Files[9].End,
		FilesCount:     5,
	}
	require.NoError(t, f.DB.Create(stale).Error)

	_, err := filerange.NewReconciler(nil, nil, nil).Submit(context.Background(), f.DB, load(t, f, f.Owner),
		[]filerange.DesiredRange{{AnnotatorID: f.Annotator.ID, FirstFileIndex: 9, LastFileIndex: 9}}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryRangeReconcile))
	assert.Equal(t, [][2]int{{8, 12}}, bounds(ranges(t, f, f.Annotator)), "the transaction is rolled back")
}

func TestReconcileEmptySetDeletesEverything(t *testing.T) {
	f := testutil.NewFixture(t, 10)
	submit(t, f, []filerange.DesiredRange{
		{AnnotatorID: f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 2},
		{AnnotatorID: f.Annotator.ID, FirstFileIndex: 6, LastFileIndex: 8},
	})
	require.Len(t, ranges(t, f, f.Annotator), 2)

	outcome := submit(t, f, nil, f.Annotator.ID)
	assert.Equal(t, 2, outcome.Deleted)
	assert.EqualValues(t, 6, outcome.TasksDeleted)
	assert.Empty(t, ranges(t, f, f.Annotator))
	assert.Empty(t, taskFiles(t, f, f.Annotator))
}

func TestReconcileKeepsFinishedTasks(t *testing.T) {
	f := testutil.NewFixture(t, 6)
	f.AddRange(t, f.Phase, f.Annotator, 0, 2)
	f.AddTask(t, f.Phase, f.Annotator, 1, entities.TaskFinished)

	submit(t, f, []filerange.DesiredRange{{AnnotatorID: f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 5}})

	var task entities.AnnotationTask
	require.NoError(t, f.DB.Where("phase_id = ? AND dataset_file_id = ?", f.Phase.ID, f.Files[1].ID).First(&task).Error)
	assert.Equal(t, entities.TaskFinished, task.Status)
}

func TestReconcileValidation(t *testing.T) {
	f := testutil.NewFixture(t, 10)
	kept := f.AddRange(t, f.Phase, f.Annotator, 0, 1)
	other := testutil.AddUser(t, f.DB, "other", false)
	foreign := f.AddRange(t, f.Phase, other, 3, 4)
	unknown := uint(12345)

	desired := []filerange.DesiredRange{
		{AnnotatorID: f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 3},
		{AnnotatorID: f.Annotator.ID, FirstFileIndex: -1, LastFileIndex: 10},
		{AnnotatorID: f.Annotator.ID, FirstFileIndex: 5, LastFileIndex: 3},
		{AnnotatorID: 9999, FirstFileIndex: 0, LastFileIndex: 1},
		{ID: &unknown, AnnotatorID: f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 1},
		{ID: &foreign.ID, AnnotatorID: f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 1},
		{AnnotatorID: 0, FirstFileIndex: 0, LastFileIndex: 1},
	}
	_, err := filerange.NewReconciler(nil, nil, nil).
		Submit(context.Background(), f.DB, load(t, f, f.Owner), desired, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	var le errors.ListErrors
	require.True(t, errors.As(err, &le))
	require.Len(t, le, len(desired))
	assert.True(t, le[0].Empty())
	assert.True(t, le[1].Has("first_file_index", errors.CodeMinValue))
	assert.True(t, le[1].Has("last_file_index", errors.CodeMaxValue))
	assert.True(t, le[2].Has("last_file_index", errors.CodeValueOrder))
	assert.True(t, le[3].Has("annotator", errors.CodeDoesNotExist))
	assert.True(t, le[4].Has("id", errors.CodeDoesNotExist))
	assert.True(t, le[5].Has("id", errors.CodeDoesNotExist))
	assert.True(t, le[6].Has("annotator", errors.CodeRequired))

	stored := ranges(t, f, f.Annotator)
	require.Len(t, stored, 1, "nothing is written on failure")
	assert.Equal(t, kept.ID, stored[0].ID)
}

func TestReconcileDuplicateID(t *testing.T) {
	f := testutil.NewFixture(t, 10)
	r := f.AddRange(t, f.Phase, f.Annotator, 0, 1)

	_, err := filerange.NewReconciler(nil, nil, nil).Submit(context.Background(), f.DB, load(t, f, f.Owner),
		[]filerange.DesiredRange{
			{ID: &r.ID, AnnotatorID: f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 1},
			{ID: &r.ID, AnnotatorID: f.Annotator.ID, FirstFileIndex: 4, LastFileIndex: 5},
		}, nil)

	var le errors.ListErrors
	require.True(t, errors.As(err, &le))
	assert.True(t, le[0].Empty())
	assert.True(t, le[1].Has("id", errors.CodeUnique))
}

func TestSubmitPermissionsAndEvents(t *testing.T) {
	f := testutil.NewFixture(t, 4)
	publisher := &recordingPublisher{}
	reconciler := filerange.NewReconciler(nil, nil, publisher)
	desired := []filerange.DesiredRange{{AnnotatorID: f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 3}}
	ctx := context.Background()

	_, err := reconciler.Submit(ctx, f.DB, load(t, f, f.Annotator), desired, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryForbidden))
	assert.Empty(t, publisher.events)

	_, err = reconciler.Submit(ctx, f.DB, load(t, f, f.Staff), desired, nil)
	require.NoError(t, err)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.RangesReconciled, publisher.events[0].Type)
	assert.Equal(t, f.Phase.ID, publisher.events[0].PhaseID)

	cc := load(t, f, f.Owner)
	require.NoError(t, campaign.NewService(f.DB, nil, nil).EndPhase(ctx, cc))
	_, err = reconciler.Submit(ctx, f.DB, load(t, f, f.Owner), desired, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryForbidden), "ended phase is read-only")
}

func TestApplyDerivedSwapsReversedTimeline(t *testing.T) {
	f := testutil.NewFixture(t, 3)
	files := []entities.DatasetFile{f.Files[2], f.Files[1], f.Files[0]}

	r := &entities.AnnotationFileRange{FirstFileIndex: 0, LastFileIndex: 2}
	filerange.ApplyDerived(r, files)

	assert.True(t, r.FromDatetime.Equal(f.Files[0].End))
	assert.True(t, r.ToDatetime.Equal(f.Files[2].Start))
	assert.False(t, r.ToDatetime.Before(r.FromDatetime))
	assert.Equal(t, 3, r.FilesCount)
}
