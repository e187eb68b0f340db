/*
Copyright © 2013 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package geofuse

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/collijk/geofuse/internal/geomio"
)

// Strategy selects which merger (C4) variant to run.
type Strategy int

const (
	// NeighborWeighted is the iterative, adaptive-threshold merger
	// (SPEC_FULL.md §4.4 extended algorithm). It is the default: the
	// source carries two merger implementations with no record of which
	// was the intended production path (spec.md §9 open question), and
	// this spec resolves that by defaulting to the more robust one.
	NeighborWeighted Strategy = iota
	// Base is the deterministic, single-pass buffered-overlap merger.
	Base
)

// MergeParams names the merger's tunables.
type MergeParams struct {
	// BufferSize is the reference-geometry buffer radius used by Base.
	BufferSize float64
	// NeighborBuffer is the mergeable-geometry buffer radius used to find
	// candidate neighbors in NeighborWeighted.
	NeighborBuffer float64
	// VerySmallArea is the area below which a mergeable fragment merges to
	// its single top neighbor unconditionally.
	VerySmallArea float64
}

// DefaultMergeParams matches SPEC_FULL.md §4.4.
var DefaultMergeParams = MergeParams{
	BufferSize:     10,
	NeighborBuffer: 1,
	VerySmallArea:  1e-3,
}

// Merge dissolves every mergeable fragment of rows into a reference
// neighbor (C4), returning the new detailed layer.
func Merge(rows []MergeRow, strategy Strategy, p MergeParams) ([]MergeRow, error) {
	switch strategy {
	case Base:
		return mergeBase(rows, p.BufferSize)
	default:
		return mergeNeighborWeighted(rows, p)
	}
}

// mergeBase implements the deterministic single-pass algorithm: every
// reference fragment gets a buffered catchment, and every mergeable
// fragment is assigned to whichever catchment covers the largest share of
// its own area.
func mergeBase(rows []MergeRow, bufferSize float64) ([]MergeRow, error) {
	mergeID := make([]*int, len(rows))
	next := 0
	var references, mergeable []int
	for i, r := range rows {
		if r.Mergeable {
			mergeable = append(mergeable, i)
		} else {
			id := next
			next++
			mergeID[i] = &id
			references = append(references, i)
		}
	}

	bestFrac := make([]float64, len(rows))
	bestID := make([]*int, len(rows))

	for _, ri := range references {
		buffered, err := geomio.Buffer(rows[ri].Geometry, bufferSize)
		if err != nil {
			return nil, fmt.Errorf("geofuse: merge: buffering reference %d: %w", ri, err)
		}
		for _, mi := range mergeable {
			if rows[mi].Area <= 0 {
				continue
			}
			inter := rows[mi].Geometry.Intersection(geom.Polygonal(buffered))
			frac := polygonArea(inter) / rows[mi].Area
			if frac > bestFrac[mi] {
				bestFrac[mi] = frac
				id := *mergeID[ri]
				bestID[mi] = &id
			}
		}
	}
	for _, mi := range mergeable {
		mergeID[mi] = bestID[mi]
	}

	return dissolveByMergeID(rows, mergeID), nil
}

type mergeParams struct {
	threshold float64
	neighbors int
}

// nextSchedule advances the (threshold, neighbor_count) relaxation ladder
// of SPEC_FULL.md §4.4: (0.5,2) -> (0.7,3) -> multiply threshold by 0.9
// while it stays above 0.4 -> jump to (0.7, effectively unbounded) and keep
// multiplying by 0.9.
func nextSchedule(p mergeParams) mergeParams {
	if p.neighbors == 2 {
		return mergeParams{threshold: 0.7, neighbors: 3}
	}
	next := p.threshold * 0.9
	if p.neighbors == 3 && next <= 0.4 {
		return mergeParams{threshold: 0.7, neighbors: math.MaxInt32}
	}
	return mergeParams{threshold: next, neighbors: p.neighbors}
}

// mergeNeighborWeighted implements the iterative algorithm: a spatial index
// of reference+mergeable geometries drives a proportional-overlap
// assignment, re-applied at progressively looser thresholds until every
// fragment has been absorbed.
func mergeNeighborWeighted(rows []MergeRow, p MergeParams) ([]MergeRow, error) {
	cur := rows
	params := mergeParams{threshold: 0.5, neighbors: 2}

	for hasMergeable(cur) {
		for {
			next, changed, err := neighborWeightedPass(cur, params, p)
			if err != nil {
				return nil, err
			}
			cur = next
			if !changed {
				break
			}
		}
		newParams := nextSchedule(params)
		if newParams == params {
			// Schedule has converged (threshold decayed to a fixed point);
			// avoid spinning forever on a pathological input.
			break
		}
		params = newParams
	}
	return cur, nil
}

func hasMergeable(rows []MergeRow) bool {
	for _, r := range rows {
		if r.Mergeable {
			return true
		}
	}
	return false
}

// neighborWeightedPass runs one pass of the proportional-overlap merge
// decision over the current (threshold, neighbor_count) setting. It
// reports whether any fragment was merged this pass.
func neighborWeightedPass(rows []MergeRow, sched mergeParams, p MergeParams) ([]MergeRow, bool, error) {
	index := rtree.NewTree(25, 50)
	for i := range rows {
		index.Insert(&rows[i])
	}

	mergeID := make([]*int, len(rows))
	next := 0
	for i, r := range rows {
		if !r.Mergeable {
			id := next
			next++
			mergeID[i] = &id
		}
	}

	type proposal struct {
		from, to int
		area     float64
	}
	var proposals []proposal

	for i, r := range rows {
		if !r.Mergeable {
			continue
		}
		buffered, err := geomio.Buffer(r.Geometry, p.NeighborBuffer)
		if err != nil {
			return nil, false, fmt.Errorf("geofuse: merge: buffering mergeable %d: %w", i, err)
		}
		searchBounds := buffered.Bounds()
		if searchBounds == nil {
			searchBounds = r.Geometry.Bounds()
		}
		candidates := index.SearchIntersect(searchBounds)

		type overlap struct {
			idx  int
			area float64
		}
		var overlaps []overlap
		total := 0.0
		for _, c := range candidates {
			j := indexOfRow(rows, c.(*MergeRow))
			if j == i {
				continue
			}
			inter := geom.Polygonal(buffered).Intersection(rows[j].Geometry)
			a := polygonArea(inter)
			if a <= 0 {
				continue
			}
			overlaps = append(overlaps, overlap{idx: j, area: a})
			total += a
		}
		if len(overlaps) == 0 || total <= 0 {
			continue
		}
		sort.Slice(overlaps, func(a, b int) bool { return overlaps[a].area > overlaps[b].area })

		if r.Area <= p.VerySmallArea {
			proposals = append(proposals, proposal{from: i, to: overlaps[0].idx, area: r.Area})
			continue
		}

		nCount := 0
		for _, o := range overlaps {
			if o.area/total > 0.01 {
				nCount++
			}
		}
		topFrac := overlaps[0].area / total
		if topFrac >= sched.threshold && nCount <= sched.neighbors {
			proposals = append(proposals, proposal{from: i, to: overlaps[0].idx, area: r.Area})
		}
	}

	if len(proposals) == 0 {
		return rows, false, nil
	}

	// Break mutual-merge cycles: if i proposes to merge into j and j also
	// proposes to merge into i, only the smaller-area endpoint's proposal
	// survives (SPEC_FULL.md §4.4, spec.md §9).
	proposeTo := make(map[int]int, len(proposals))
	for _, pr := range proposals {
		proposeTo[pr.from] = pr.to
	}
	accepted := make([]proposal, 0, len(proposals))
	for _, pr := range proposals {
		if dst, mutual := proposeTo[pr.to]; mutual && dst == pr.from {
			if rows[pr.from].Area > rows[pr.to].Area {
				continue
			}
		}
		accepted = append(accepted, pr)
	}
	if len(accepted) == 0 {
		return rows, false, nil
	}

	for _, pr := range accepted {
		root := pr.to
		for mergeID[root] == nil {
			if next, ok := proposeTo[root]; ok && next != root {
				root = next
				continue
			}
			break
		}
		if mergeID[root] == nil {
			id := nextFreeID(mergeID, &next)
			mergeID[root] = &id
		}
		mergeID[pr.from] = mergeID[root]
	}

	merged := dissolveByMergeID(rows, mergeID)
	for i := range merged {
		smoothed, err := geomio.DoubleBuffer(merged[i].Geometry, 1)
		if err != nil {
			return nil, false, fmt.Errorf("geofuse: merge: smoothing seam for %v: %w", merged[i].ShapeID, err)
		}
		merged[i].Geometry = firstShellOrUnion(smoothed)
	}

	// A mergeable row that received no accepted proposal this pass survives
	// unchanged rather than being dropped by dissolveByMergeID's nil-id rule:
	// the whole point of the relaxation ladder (nextSchedule) is that such a
	// fragment may still clear a looser rung later (SPEC_FULL.md §4.4).
	for i, id := range mergeID {
		if id == nil {
			merged = append(merged, rows[i])
		}
	}
	return merged, true, nil
}

func nextFreeID(assigned []*int, next *int) int {
	id := *next
	*next++
	return id
}

func indexOfRow(rows []MergeRow, target *MergeRow) int {
	for i := range rows {
		if &rows[i] == target {
			return i
		}
	}
	return -1
}

// dissolveByMergeID unions every row sharing a merge_id into a single
// fragment, carrying the reference row's (non-mergeable) attributes
// forward. Rows with a nil merge_id were left unassigned by the merge
// decision and are dropped, matching SPEC_FULL.md §4.4's "rare" case.
func dissolveByMergeID(rows []MergeRow, mergeID []*int) []MergeRow {
	type group struct {
		ref     MergeRow
		hasRef  bool
		geom    geom.Polygon
		hasGeom bool
	}
	groups := make(map[int]*group)
	var order []int
	for i, r := range rows {
		id := mergeID[i]
		if id == nil {
			continue
		}
		g, ok := groups[*id]
		if !ok {
			g = &group{}
			groups[*id] = g
			order = append(order, *id)
		}
		if !r.Mergeable {
			g.ref = r
			g.hasRef = true
		}
		if !g.hasGeom {
			g.geom = r.Geometry
			g.hasGeom = true
		} else {
			g.geom = g.geom.Union(r.Geometry)
		}
	}

	sort.Ints(order)
	out := make([]MergeRow, 0, len(order))
	for _, id := range order {
		g := groups[id]
		var row MergeRow
		if g.hasRef {
			row = g.ref
		} else {
			// No reference claimed this group: every member was mergeable
			// (the harmonizer's degenerate-parent case handles this
			// upstream, but guard here too for direct callers of Merge).
			row = rows[0]
		}
		row.Geometry = g.geom
		row.Mergeable = false
		row.MergeID = nil
		out = append(out, row)
	}
	return out
}

// firstShellOrUnion collapses a MultiPolygon buffer result back down to a
// single geom.Polygon by unioning all of its shells, so callers that expect
// one Polygon per row (the working representation between merge passes)
// keep getting one. The multipolygon-repair stage (C5) is responsible for
// deciding whether a truly disjoint result should survive as-is.
func firstShellOrUnion(mp geom.MultiPolygon) geom.Polygon {
	if len(mp) == 0 {
		return geom.Polygon{}
	}
	result := mp[0]
	for _, shell := range mp[1:] {
		result = result.Union(shell)
	}
	return result
}
