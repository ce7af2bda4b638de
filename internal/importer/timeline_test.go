package importer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// minuteFiles returns n contiguous one minute files.
func minuteFiles(n int) Timeline {
	tl := make(Timeline, n)
	for i := range tl {
		start := t0.Add(time.Duration(i) * time.Minute)
		tl[i] = &entities.DatasetFile{ID: uint(i + 1), Start: start, End: start.Add(time.Minute)}
	}
	return tl
}

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func ptr(v float64) *float64 {
	return &v
}

func TestSplitSingleFile(t *testing.T) {
	tl := minuteFiles(3)

	pieces := tl.Split(at(70), at(80), true, ptr(100), ptr(200))
	require.Len(t, pieces, 1)
	p := pieces[0]
	assert.Equal(t, uint(2), p.File.ID)
	assert.InDelta(t, 10, *p.StartTime, 1e-9)
	assert.InDelta(t, 20, *p.EndTime, 1e-9)
	assert.InDelta(t, 100, *p.StartFrequency, 0)
	assert.InDelta(t, 200, *p.EndFrequency, 0)
}

func TestSplitAcrossFiles(t *testing.T) {
	tl := minuteFiles(4)

	pieces := tl.Split(at(30), at(135), true, ptr(100), ptr(200))
	require.Len(t, pieces, 3)

	assert.Equal(t, uint(1), pieces[0].File.ID)
	assert.InDelta(t, 30, *pieces[0].StartTime, 1e-9)
	assert.InDelta(t, 60, *pieces[0].EndTime, 1e-9)

	assert.Equal(t, uint(2), pieces[1].File.ID)
	assert.Nil(t, pieces[1].StartTime, "intermediate files are weak")
	assert.Nil(t, pieces[1].StartFrequency)

	assert.Equal(t, uint(3), pieces[2].File.ID)
	assert.InDelta(t, 0, *pieces[2].StartTime, 1e-9)
	assert.InDelta(t, 15, *pieces[2].EndTime, 1e-9)
	assert.InDelta(t, 200, *pieces[2].EndFrequency, 0)
}

func TestSplitWeak(t *testing.T) {
	tl := minuteFiles(3)

	pieces := tl.Split(at(30), at(90), false, nil, nil)
	require.Len(t, pieces, 2)
	for _, p := range pieces {
		assert.Nil(t, p.StartTime)
		assert.Nil(t, p.EndTime)
	}
}

func TestSplitZeroLength(t *testing.T) {
	tl := minuteFiles(2)

	pieces := tl.Split(at(60), at(60), true, ptr(1), ptr(2))
	require.Len(t, pieces, 1)
	assert.Equal(t, uint(2), pieces[0].File.ID)
	assert.InDelta(t, 0, *pieces[0].StartTime, 1e-9)
	assert.InDelta(t, 0, *pieces[0].EndTime, 1e-9)
}

func TestTimelineLookups(t *testing.T) {
	tl := Timeline{
		{ID: 1, Filename: "a.wav", Start: at(0), End: at(60)},
		{ID: 2, Filename: "b.wav", Start: at(120), End: at(180)},
	}

	assert.Equal(t, uint(1), tl.Containing(at(59)).ID)
	assert.Nil(t, tl.Containing(at(60)), "end is exclusive")
	assert.Nil(t, tl.Containing(at(90)))
	assert.Equal(t, uint(2), tl.Next(at(90)).ID)
	assert.Nil(t, tl.Next(at(121)))
	assert.Equal(t, uint(2), tl.ByName("b.wav").ID)
	assert.Nil(t, tl.ByName("c.wav"))
}

func TestParseCSVAliases(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("\ufeffDataset, start_frequency,end_frequency,annotation,ignored\nds,1,2,Buzz,x\n,,,,\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1, "blank lines are dropped")
	assert.Equal(t, "ds", rows[0].Get(colDataset))
	assert.Equal(t, "1", rows[0].Get(colMinFrequency))
	assert.Equal(t, "2", rows[0].Get(colMaxFrequency))
	assert.Equal(t, "Buzz", rows[0].Get(colLabel))
	assert.Len(t, rows[0], 4)

	_, err = ParseCSV(strings.NewReader(""))
	require.Error(t, err)
}
