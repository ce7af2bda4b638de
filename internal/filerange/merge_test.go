package filerange

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

func stored(id uint, first, last int) entities.AnnotationFileRange {
	return entities.AnnotationFileRange{ID: id, FirstFileIndex: first, LastFileIndex: last}
}

func want(first, last int) DesiredRange {
	return DesiredRange{FirstFileIndex: first, LastFileIndex: last}
}

func wantID(id uint, first, last int) DesiredRange {
	return DesiredRange{ID: &id, FirstFileIndex: first, LastFileIndex: last}
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name    string
		desired []DesiredRange
		stored  []entities.AnnotationFileRange
		want    []Group
	}{
		{
			name:    "new range",
			desired: []DesiredRange{want(0, 5)},
			want:    []Group{{First: 0, Last: 5, Desired: true}},
		},
		{
			name:    "overlap bridges two stored ranges",
			desired: []DesiredRange{want(4, 7)},
			stored:  []entities.AnnotationFileRange{stored(1, 0, 5), stored(2, 6, 9)},
			want:    []Group{{First: 0, Last: 9, IDs: []uint{1, 2}, Desired: true}},
		},
		{
			name:    "adjacent sibling merges",
			desired: []DesiredRange{want(6, 7)},
			stored:  []entities.AnnotationFileRange{stored(3, 0, 5)},
			want:    []Group{{First: 0, Last: 7, IDs: []uint{3}, Desired: true}},
		},
		{
			name:    "identical resubmission keeps the row",
			desired: []DesiredRange{want(0, 5)},
			stored:  []entities.AnnotationFileRange{stored(3, 0, 5)},
			want:    []Group{{First: 0, Last: 5, IDs: []uint{3}, Desired: true}},
		},
		{
			name:    "claimed id shrinks",
			desired: []DesiredRange{wantID(3, 0, 4)},
			stored:  []entities.AnnotationFileRange{stored(3, 0, 9)},
			want:    []Group{{First: 0, Last: 4, IDs: []uint{3}, Desired: true}},
		},
		{
			name:    "untouched stored range is dropped",
			desired: []DesiredRange{want(0, 1)},
			stored:  []entities.AnnotationFileRange{stored(4, 5, 6)},
			want: []Group{
				{First: 0, Last: 1, Desired: true},
				{First: 5, Last: 6, IDs: []uint{4}},
			},
		},
		{
			name:   "empty desired set deletes everything",
			stored: []entities.AnnotationFileRange{stored(1, 0, 2), stored(2, 4, 5)},
			want: []Group{
				{First: 0, Last: 2, IDs: []uint{1}},
				{First: 4, Last: 5, IDs: []uint{2}},
			},
		},
		{
			name:    "desired ranges merge between themselves",
			desired: []DesiredRange{want(5, 8), want(0, 4), want(10, 10)},
			want: []Group{
				{First: 0, Last: 8, Desired: true},
				{First: 10, Last: 10, Desired: true},
			},
		},
		{
			name:    "lowest id survives",
			desired: []DesiredRange{wantID(7, 0, 3), wantID(2, 3, 6)},
			stored:  []entities.AnnotationFileRange{stored(7, 0, 3), stored(2, 3, 6)},
			want:    []Group{{First: 0, Last: 6, IDs: []uint{2, 7}, Desired: true}},
		},
		{
			name: "nothing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Plan(tt.desired, tt.stored))
		})
	}
}

func TestPlanReplace(t *testing.T) {
	tests := []struct {
		name    string
		desired []DesiredRange
		stored  []entities.AnnotationFileRange
		want    []Group
	}{
		{
			name:    "shrink keeps the overlapping id",
			desired: []DesiredRange{want(0, 4)},
			stored:  []entities.AnnotationFileRange{stored(3, 0, 9)},
			want:    []Group{{First: 0, Last: 4, IDs: []uint{3}, Desired: true}},
		},
		{
			name:    "lowest overlapping id survives",
			desired: []DesiredRange{want(2, 7)},
			stored:  []entities.AnnotationFileRange{stored(8, 0, 3), stored(5, 6, 9)},
			want: []Group{
				{First: 0, Last: 3, IDs: []uint{8}},
				{First: 2, Last: 7, IDs: []uint{5}, Desired: true},
			},
		},
		{
			name:    "adjacent stored range is not absorbed",
			desired: []DesiredRange{want(6, 7)},
			stored:  []entities.AnnotationFileRange{stored(3, 0, 5)},
			want: []Group{
				{First: 0, Last: 5, IDs: []uint{3}},
				{First: 6, Last: 7, Desired: true},
			},
		},
		{
			name:    "claimed id wins over donors",
			desired: []DesiredRange{wantID(9, 0, 2)},
			stored:  []entities.AnnotationFileRange{stored(1, 0, 5), stored(9, 7, 8)},
			want: []Group{
				{First: 0, Last: 2, IDs: []uint{9}, Desired: true},
				{First: 0, Last: 5, IDs: []uint{1}},
			},
		},
		{
			name:    "identical resubmission keeps the row",
			desired: []DesiredRange{want(0, 5)},
			stored:  []entities.AnnotationFileRange{stored(3, 0, 5)},
			want:    []Group{{First: 0, Last: 5, IDs: []uint{3}, Desired: true}},
		},
		{
			name:   "empty desired set deletes everything",
			stored: []entities.AnnotationFileRange{stored(2, 4, 5), stored(1, 0, 2)},
			want: []Group{
				{First: 0, Last: 2, IDs: []uint{1}},
				{First: 4, Last: 5, IDs: []uint{2}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanReplace(tt.desired, tt.stored))
		})
	}
}

func TestGroupSurvivorAndObsolete(t *testing.T) {
	g := Group{First: 0, Last: 9, IDs: []uint{2, 5, 8}, Desired: true}
	assert.Equal(t, uint(2), g.Survivor())
	assert.Equal(t, []uint{5, 8}, g.Obsolete())

	dropped := Group{IDs: []uint{4}}
	assert.Zero(t, dropped.Survivor())
	assert.Equal(t, []uint{4}, dropped.Obsolete())

	fresh := Group{Desired: true}
	assert.Zero(t, fresh.Survivor())
	assert.Empty(t, fresh.Obsolete())
}
