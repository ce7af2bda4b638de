package v1_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/Project-OSmOSE/osmose-app-sub000/internal/api/v1"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/events"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/filerange"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/testutil"
)

func TestReconcileReportsPositionalErrors(t *testing.T) {
	h := newHarness(t, 10)
	a := h.f.Annotator.ID

	rec := h.do(http.MethodPost, h.phasePath("/file-ranges"), h.f.Owner, v1.FileRangesRequest{
		Data: []filerange.DesiredRange{
			{AnnotatorID: a, FirstFileIndex: 0, LastFileIndex: 1},
			{AnnotatorID: a, FirstFileIndex: 5, LastFileIndex: 2},
			{AnnotatorID: a, FirstFileIndex: 3, LastFileIndex: 10},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	body := decode[struct {
		Errors errors.ListErrors `json:"errors"`
	}](t, rec)
	require.Len(t, body.Errors, 3)
	assert.Empty(t, body.Errors[0])
	assert.True(t, body.Errors[1].Has("last_file_index", errors.CodeValueOrder))
	assert.True(t, body.Errors[2].Has("last_file_index", errors.CodeMaxValue))

	var count int64
	require.NoError(t, h.f.DB.Table("annotation_file_ranges").Count(&count).Error)
	assert.Zero(t, count, "a rejected batch stores nothing")
}

func TestReconcileRequiresManager(t *testing.T) {
	h := newHarness(t, 4)
	h.f.AddRange(t, h.f.Phase, h.f.Annotator, 0, 0)

	rec := h.do(http.MethodPost, h.phasePath("/file-ranges"), h.f.Annotator, v1.FileRangesRequest{
		Data: []filerange.DesiredRange{{AnnotatorID: h.f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 3}},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReconcileAndListRanges(t *testing.T) {
	h := newHarness(t, 10)
	other := testutil.AddUser(t, h.f.DB, "other", false)

	rec := h.do(http.MethodPost, h.phasePath("/file-ranges"), h.f.Owner, v1.FileRangesRequest{
		Data: []filerange.DesiredRange{
			{AnnotatorID: h.f.Annotator.ID, FirstFileIndex: 0, LastFileIndex: 3},
			{AnnotatorID: h.f.Annotator.ID, FirstFileIndex: 2, LastFileIndex: 5},
			{AnnotatorID: other.ID, FirstFileIndex: 6, LastFileIndex: 9},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[v1.ReconcileResponse](t, rec)
	assert.Equal(t, 2, out.Created, "overlapping ranges of one annotator merge")
	assert.Equal(t, int64(10), out.TasksCreated)
	require.Len(t, out.Data, 2)
	assert.Contains(t, h.pub.types(), events.RangesReconciled)

	rec = h.do(http.MethodGet, h.phasePath("/file-ranges"), h.f.Annotator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	own := decode[[]v1.FileRangeResponse](t, rec)
	require.Len(t, own, 1)
	assert.Equal(t, 0, own[0].FirstFileIndex)
	assert.Equal(t, 5, own[0].LastFileIndex)
	assert.Equal(t, 6, own[0].FilesCount)
	assert.True(t, testutil.FixtureStart.Equal(own[0].FromDatetime), own[0].FromDatetime)

	rec = h.do(http.MethodGet, h.phasePath("/file-ranges?annotator=%d", other.ID), h.f.Owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decode[[]v1.FileRangeResponse](t, rec)
	require.Len(t, filtered, 1)
	assert.Equal(t, other.ID, filtered[0].AnnotatorID)

	rec = h.do(http.MethodGet, h.phasePath("/file-ranges?annotator=abc"), h.f.Owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplaceAnnotatorRanges(t *testing.T) {
	h := newHarness(t, 6)
	other := testutil.AddUser(t, h.f.DB, "other", false)
	h.f.AddRange(t, h.f.Phase, other, 0, 5)

	path := h.phasePath("/annotators/%d/file-ranges", h.f.Annotator.ID)
	rec := h.do(http.MethodPut, path, h.f.Owner, v1.FileRangesRequest{
		Data: []filerange.DesiredRange{{AnnotatorID: other.ID, FirstFileIndex: 1, LastFileIndex: 2}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[v1.ReconcileResponse](t, rec)
	require.Len(t, out.Data, 1)
	assert.Equal(t, h.f.Annotator.ID, out.Data[0].AnnotatorID, "the path annotator wins over the body")

	rec = h.do(http.MethodPut, path, h.f.Owner, v1.FileRangesRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
	out = decode[v1.ReconcileResponse](t, rec)
	assert.Equal(t, 1, out.Deleted)
	assert.Empty(t, out.Data)

	var count int64
	require.NoError(t, h.f.DB.Table("annotation_file_ranges").Where("annotator_id = ?", other.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "ranges of other annotators are untouched")
}

func TestReplaceAnnotatorRangesShrinks(t *testing.T) {
	h := newHarness(t, 10)
	h.assign(h.f.Annotator, 0, 9)

	rec := h.do(http.MethodGet, h.phasePath("/tasks"), h.f.Annotator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]v1.TaskResponse](t, rec), 10)

	rec = h.do(http.MethodPut, h.phasePath("/annotators/%d/file-ranges", h.f.Annotator.ID), h.f.Owner, v1.FileRangesRequest{
		Data: []filerange.DesiredRange{{FirstFileIndex: 0, LastFileIndex: 4}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[v1.ReconcileResponse](t, rec)
	require.Len(t, out.Data, 1)
	assert.Equal(t, 0, out.Data[0].FirstFileIndex)
	assert.Equal(t, 4, out.Data[0].LastFileIndex)
	assert.EqualValues(t, 5, out.TasksDeleted)

	rec = h.do(http.MethodGet, h.phasePath("/tasks"), h.f.Annotator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]v1.TaskResponse](t, rec), 5)
}

func TestListTasks(t *testing.T) {
	h := newHarness(t, 5)
	h.f.AddRange(t, h.f.Phase, h.f.Annotator, 1, 3)
	for i := 1; i <= 3; i++ {
		h.f.AddTask(t, h.f.Phase, h.f.Annotator, i, entities.TaskCreated)
	}

	rec := h.do(http.MethodGet, h.phasePath("/tasks"), h.f.Annotator, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[[]v1.TaskResponse](t, rec)
	require.Len(t, list, 3)
	indexes := make([]int, 0, len(list))
	for _, task := range list {
		indexes = append(indexes, task.File.Index)
		assert.Equal(t, "CREATED", task.Status)
		assert.Equal(t, fmt.Sprintf("sound%03d.wav", task.File.Index), task.File.Filename)
	}
	assert.ElementsMatch(t, []int{1, 2, 3}, indexes)
}
