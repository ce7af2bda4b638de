package filerange

import (
	"cmp"
	"slices"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

// DesiredRange is one range a client wants stored. ID, when set, names the
// stored range whose bounds it replaces.
type DesiredRange struct {
	ID             *uint `json:"id,omitempty"`
	AnnotatorID    uint  `json:"annotator"`
	FirstFileIndex int   `json:"first_file_index"`
	LastFileIndex  int   `json:"last_file_index"`
}

// Group is a run of overlapping or adjacent intervals merged into one range.
type Group struct {
	First int
	Last  int
	// IDs are the stored ranges absorbed by the group, ascending.
	IDs []uint
	// Desired is false when the group only holds stored ranges nobody asked
	// to keep.
	Desired bool
}

// Survivor returns the stored range kept for the group, or 0 when the group
// must be created or deleted.
func (g *Group) Survivor() uint {
	if !g.Desired || len(g.IDs) == 0 {
		return 0
	}
	return g.IDs[0]
}

// Obsolete returns the stored ranges the group deletes.
func (g *Group) Obsolete() []uint {
	if !g.Desired {
		return g.IDs
	}
	if len(g.IDs) <= 1 {
		return nil
	}
	return g.IDs[1:]
}

type interval struct {
	first   int
	last    int
	id      uint
	desired bool
}

// Plan merges the desired ranges of one annotator with the stored ranges of
// the same annotator and phase. A desired range carrying the ID of a stored
// range takes its place; other stored ranges are kept as candidates and
// absorbed by any desired range they overlap or touch. Groups are returned in
// index order. Inputs must already be validated.
func Plan(desired []DesiredRange, stored []entities.AnnotationFileRange) []Group {
	claimed := make(map[uint]bool, len(desired))
	nodes := make([]interval, 0, len(desired)+len(stored))
	for _, d := range desired {
		n := interval{first: d.FirstFileIndex, last: d.LastFileIndex, desired: true}
		if d.ID != nil {
			n.id = *d.ID
			claimed[n.id] = true
		}
		nodes = append(nodes, n)
	}
	for i := range stored {
		if claimed[stored[i].ID] {
			continue
		}
		nodes = append(nodes, interval{
			first: stored[i].FirstFileIndex,
			last:  stored[i].LastFileIndex,
			id:    stored[i].ID,
		})
	}
	return merge(nodes)
}

// PlanReplace is Plan for an annotator whose stored set is replaced rather
// than merged. Stored ranges never widen a group: an unclaimed stored range
// only lends its ID to the first desired group it overlaps that has none, so
// the lowest overlapping ID survives with the desired bounds. Every other
// stored range is returned in a group to delete.
func PlanReplace(desired []DesiredRange, stored []entities.AnnotationFileRange) []Group {
	claimed := make(map[uint]bool, len(desired))
	nodes := make([]interval, 0, len(desired))
	for _, d := range desired {
		n := interval{first: d.FirstFileIndex, last: d.LastFileIndex, desired: true}
		if d.ID != nil {
			n.id = *d.ID
			claimed[n.id] = true
		}
		nodes = append(nodes, n)
	}
	groups := merge(nodes)

	donors := slices.Clone(stored)
	slices.SortFunc(donors, func(a, b entities.AnnotationFileRange) int {
		return cmp.Compare(a.ID, b.ID)
	})
	for i := range donors {
		s := &donors[i]
		if claimed[s.ID] {
			continue
		}
		lent := false
		for j := range groups {
			g := &groups[j]
			if len(g.IDs) == 0 && s.FirstFileIndex <= g.Last && s.LastFileIndex >= g.First {
				g.IDs = []uint{s.ID}
				lent = true
				break
			}
		}
		if !lent {
			groups = append(groups, Group{First: s.FirstFileIndex, Last: s.LastFileIndex, IDs: []uint{s.ID}})
		}
	}

	slices.SortStableFunc(groups, func(a, b Group) int {
		return cmp.Or(cmp.Compare(a.First, b.First), cmp.Compare(a.Last, b.Last))
	})
	return groups
}

// merge sorts nodes and folds overlapping or adjacent ones into groups.
func merge(nodes []interval) []Group {
	if len(nodes) == 0 {
		return nil
	}

	slices.SortFunc(nodes, func(a, b interval) int {
		return cmp.Or(cmp.Compare(a.first, b.first), cmp.Compare(a.last, b.last), cmp.Compare(a.id, b.id))
	})

	var groups []Group
	cur := newGroup(nodes[0])
	for _, n := range nodes[1:] {
		if n.first <= cur.Last+1 {
			cur.Last = max(cur.Last, n.last)
			cur.Desired = cur.Desired || n.desired
			if n.id != 0 {
				cur.IDs = append(cur.IDs, n.id)
			}
			continue
		}
		groups = append(groups, finish(cur))
		cur = newGroup(n)
	}
	return append(groups, finish(cur))
}

func newGroup(n interval) Group {
	g := Group{First: n.first, Last: n.last, Desired: n.desired}
	if n.id != 0 {
		g.IDs = []uint{n.id}
	}
	return g
}

func finish(g Group) Group {
	slices.Sort(g.IDs)
	g.IDs = slices.Compact(g.IDs)
	return g
}
