package importer

import (
	"time"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

// Piece is the part of an imported detection that falls on one file, with
// offsets relative to the file start. A piece without bounds is weak.
type Piece struct {
	File           *entities.DatasetFile
	StartTime      *float64
	EndTime        *float64
	StartFrequency *float64
	EndFrequency   *float64
}

// Timeline is the sorted file list of one dataset.
type Timeline []*entities.DatasetFile

// Start returns the start of the first file.
func (tl Timeline) Start() time.Time {
	return tl[0].Start
}

// End returns the end of the last file.
func (tl Timeline) End() time.Time {
	return tl[len(tl)-1].End
}

// Containing returns the file whose [start, end) holds t.
func (tl Timeline) Containing(t time.Time) *entities.DatasetFile {
	for _, f := range tl {
		if !t.Before(f.Start) && t.Before(f.End) {
			return f
		}
	}
	return nil
}

// Next returns the first file starting at or after t.
func (tl Timeline) Next(t time.Time) *entities.DatasetFile {
	for _, f := range tl {
		if !f.Start.Before(t) {
			return f
		}
	}
	return nil
}

// ByName returns the file with the given filename.
func (tl Timeline) ByName(name string) *entities.DatasetFile {
	for _, f := range tl {
		if f.Filename == name {
			return f
		}
	}
	return nil
}

// Split cuts [start, end] over the files it overlaps. The first file keeps
// its start offset up to its end, the last file runs from 0 to the end
// offset and files in between are weak. Weak detections (box false) yield a
// weak piece per file.
func (tl Timeline) Split(start, end time.Time, box bool, low, high *float64) []Piece {
	var covered []*entities.DatasetFile
	for _, f := range tl {
		if f.Start.Before(end) && f.End.After(start) {
			covered = append(covered, f)
		}
	}
	if len(covered) == 0 {
		if f := tl.Containing(start); f != nil {
			covered = append(covered, f)
		}
	}

	pieces := make([]Piece, 0, len(covered))
	for i, f := range covered {
		p := Piece{File: f}
		middle := i > 0 && i < len(covered)-1
		if box && !middle {
			from, to := maxTime(start, f.Start), minTime(end, f.End)
			p.StartTime = seconds(from.Sub(f.Start))
			p.EndTime = seconds(to.Sub(f.Start))
			p.StartFrequency, p.EndFrequency = copyFloat(low), copyFloat(high)
		}
		pieces = append(pieces, p)
	}
	return pieces
}

func seconds(d time.Duration) *float64 {
	s := d.Seconds()
	return &s
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
