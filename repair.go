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

	"github.com/collijk/geofuse/internal/geomio"
)

// collapseRadii is the buffer/unbuffer ladder C5 works through, in
// ascending order: r = 2^(i-4) * k for i in 0..9, k in {1, 1.01}, the
// second pass of each doubling perturbed to dodge a degenerate fixed
// point. SPEC_FULL.md §4.5.
func collapseRadii() []float64 {
	var radii []float64
	for i := 0; i <= 9; i++ {
		base := math.Pow(2, float64(i-4))
		radii = append(radii, base, base*1.01)
	}
	sort.Float64s(radii)
	return radii
}

// CollapseMultiPolygons reduces every multi-shell fragment in rows to a
// single shell (C5). A fragment that explodes into more than one shell
// after the full buffer/unbuffer ladder is resolved by keeping its
// largest-area shell and dropping the rest as spurious slivers; a
// fragment that still has zero shells afterward is fatal, since that
// means the geometry vanished rather than simplified.
func CollapseMultiPolygons(rows []MergeRow) ([]MergeRow, error) {
	out := make([]MergeRow, len(rows))
	for i, r := range rows {
		shells := explodeRings(r.Geometry)
		if len(shells) <= 1 {
			out[i] = r
			continue
		}

		resolved, err := collapseOne(r.Geometry)
		if err != nil {
			return nil, fmt.Errorf("geofuse: collapsing multipolygon for %v: %w", r.ShapeID, err)
		}
		r.Geometry = resolved
		r.Area = polygonArea(resolved)
		out[i] = r
	}
	return out, nil
}

// HasMultiPolygon reports whether any row in rows is still a multi-shell
// fragment, the Condition C5's retry loop checks against.
func HasMultiPolygon(rows []MergeRow) bool {
	for _, r := range rows {
		if len(explodeRings(r.Geometry)) > 1 {
			return true
		}
	}
	return false
}

func collapseOne(p geom.Polygon) (geom.Polygon, error) {
	for _, r := range collapseRadii() {
		dilated, err := geomio.Buffer(p, r)
		if err != nil {
			return geom.Polygon{}, fmt.Errorf("buffering at radius %v: %w", r, err)
		}
		var merged geom.Polygon
		first := true
		for _, shell := range dilated {
			if first {
				merged = shell
				first = false
			} else {
				merged = merged.Union(shell)
			}
		}
		eroded, err := geomio.Buffer(merged, -r)
		if err != nil {
			return geom.Polygon{}, fmt.Errorf("unbuffering at radius %v: %w", r, err)
		}
		shells := explodeRingsMulti(eroded)
		if len(shells) == 1 {
			return shells[0], nil
		}
	}

	// The ladder never collapsed the fragment to one shell. Keep the
	// largest piece; the rest are spurious slivers introduced by the
	// source mismatch this engine exists to correct (SPEC_FULL.md §4.5).
	shells := explodeRings(p)
	if len(shells) == 0 {
		return geom.Polygon{}, fmt.Errorf("fragment has no surviving shell after full buffer ladder")
	}
	best := shells[0]
	bestArea := polygonArea(best)
	for _, s := range shells[1:] {
		if a := polygonArea(s); a > bestArea {
			best, bestArea = s, a
		}
	}
	return best, nil
}

// explodeRingsMulti is explodeRings generalized over every shell of a
// MultiPolygon buffer result.
func explodeRingsMulti(mp geom.MultiPolygon) []geom.Polygon {
	var out []geom.Polygon
	for _, shell := range mp {
		out = append(out, explodeRings(shell)...)
	}
	return out
}

// EliminateOverlaps removes pairwise overlap between rows sharing a coarse
// parent, running spec.md §4.6's greedy pairwise-subtraction state machine
// independently within each parent's group (C6). Row order within a group is
// the canonical input order.
func EliminateOverlaps(rows []MergeRow) ([]MergeRow, error) {
	out := make([]MergeRow, len(rows))
	copy(out, rows)

	byParent := make(map[string][]int)
	for i, r := range out {
		byParent[r.ParentID] = append(byParent[r.ParentID], i)
	}

	for _, idxs := range byParent {
		eliminateOverlapsGroup(out, idxs)
	}
	return out, nil
}

// eliminateOverlapsGroup runs the i/j walk of spec.md §4.6 over one coarse
// parent's rows in place: g[j] is trimmed by g[i] unless that leaves g[j] a
// MultiPolygon, in which case the subtraction is tried in reverse against
// g[i] instead (once per pair), and the walk restarts from the beginning
// since reversing an earlier reference invalidates every pair checked so
// far. This is what keeps the pass from ever handing a surviving
// multi-shell fragment to relabel's fatal check.
func eliminateOverlapsGroup(out []MergeRow, idxs []int) {
	n := len(idxs)
	if n < 2 {
		return
	}

	type pair struct{ i, j int }
	attempted := make(map[pair]bool)

	i, j := 0, 1
	for i < n-1 && j < n {
		gi := out[idxs[i]].Geometry
		gj := out[idxs[j]].Geometry
		other := gj.Difference(gi)

		if len(explodeRings(other)) > 1 {
			key := pair{i, j}
			if attempted[key] {
				j++
			} else {
				attempted[key] = true
				newRef := gi.Difference(gj)
				out[idxs[i]].Geometry = newRef
				out[idxs[i]].Area = polygonArea(newRef)
				i, j = 0, 1
			}
		} else {
			out[idxs[j]].Geometry = other
			out[idxs[j]].Area = polygonArea(other)
			j++
		}

		if j == n {
			i++
			j = i + 1
		}
	}

	for _, idx := range idxs {
		if polygonArea(out[idx].Geometry) <= sliverArea {
			// Fully absorbed by an earlier claim: zero it out. Empty
			// fragments are filtered by the harmonizer before output.
			out[idx].Geometry = geom.Polygon{}
			out[idx].Area = 0
		}
	}
}

// AreaError computes the fractional area discrepancy between a coarse
// parent and the sum of its detailed rows' areas, the gate SPEC_FULL.md
// §4.6 uses to decide whether overlap correction should even run: a large
// discrepancy means the partition itself is broken and patching overlaps
// would just paper over it.
func AreaError(parentArea float64, rows []MergeRow) float64 {
	if parentArea <= 0 {
		return 0
	}
	sum := 0.0
	for _, r := range rows {
		sum += r.Area
	}
	return math.Abs(sum-parentArea) / parentArea
}
