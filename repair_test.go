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
	"testing"

	"github.com/ctessum/geom"
)

func TestCollapseMultiPolygonsPassesThroughSingleShellUnchanged(t *testing.T) {
	rows := []MergeRow{
		{PartitionRow: PartitionRow{Geometry: geom.Polygon{square(0, 0, 10, 10)}}},
	}
	out, err := CollapseMultiPolygons(rows)
	if err != nil {
		t.Fatalf("CollapseMultiPolygons: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("want 1 row, have %d", len(out))
	}
	if !approxEqual(polygonArea(out[0].Geometry), 100) {
		t.Errorf("want area unchanged at 100, have %v", polygonArea(out[0].Geometry))
	}
}

func TestHasMultiPolygonDetectsMultiShellFragment(t *testing.T) {
	single := []MergeRow{{PartitionRow: PartitionRow{Geometry: geom.Polygon{square(0, 0, 1, 1)}}}}
	if HasMultiPolygon(single) {
		t.Error("want a single-shell fragment to report false")
	}

	multi := []MergeRow{{PartitionRow: PartitionRow{Geometry: geom.Polygon{
		square(0, 0, 1, 1), square(10, 10, 11, 11),
	}}}}
	if !HasMultiPolygon(multi) {
		t.Error("want a two-shell fragment to report true")
	}
}

func TestEliminateOverlapsSubtractsEarlierClaim(t *testing.T) {
	rows := []MergeRow{
		{PartitionRow: PartitionRow{ParentID: "C1", Geometry: geom.Polygon{square(0, 0, 6, 10)}}},
		{PartitionRow: PartitionRow{ParentID: "C1", Geometry: geom.Polygon{square(4, 0, 10, 10)}}},
	}
	out, err := EliminateOverlaps(rows)
	if err != nil {
		t.Fatalf("EliminateOverlaps: %v", err)
	}
	if !approxEqual(polygonArea(out[0].Geometry), 60) {
		t.Errorf("want the first row's area unchanged at 60, have %v", polygonArea(out[0].Geometry))
	}
	if !approxEqual(polygonArea(out[1].Geometry), 40) {
		t.Errorf("want the second row trimmed to 40 (its overlap with the first subtracted), have %v", polygonArea(out[1].Geometry))
	}
}

// dumbbell returns a ring shaped like two 4x4 squares joined by a 6x2
// bridge (x in [4,10], y in [1,3]): the bridge is the sole connector
// between the two lobes, so subtracting it from the dumbbell always splits
// the result into the two disjoint lobes.
func dumbbell() []geom.Point {
	return []geom.Point{
		{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 1}, {X: 10, Y: 1}, {X: 10, Y: 0}, {X: 14, Y: 0},
		{X: 14, Y: 4}, {X: 10, Y: 4}, {X: 10, Y: 3}, {X: 4, Y: 3}, {X: 4, Y: 4}, {X: 0, Y: 4},
		{X: 0, Y: 0},
	}
}

func TestEliminateOverlapsReversesWhenForwardSubtractionSplitsTheResult(t *testing.T) {
	// g[0] is the bridge, entirely contained in g[1] (the dumbbell). The
	// forward subtraction g[1].difference(g[0]) splits the dumbbell into its
	// two lobes (a MultiPolygon), so the walk must reverse course and
	// subtract g[1] from g[0] instead, which empties the bridge (a strict
	// subset) and leaves the dumbbell untouched.
	rows := []MergeRow{
		{PartitionRow: PartitionRow{ParentID: "C1", Geometry: geom.Polygon{square(4, 1, 10, 3)}}},
		{PartitionRow: PartitionRow{ParentID: "C1", Geometry: geom.Polygon{dumbbell()}}},
	}
	out, err := EliminateOverlaps(rows)
	if err != nil {
		t.Fatalf("EliminateOverlaps: %v", err)
	}
	if !approxEqual(polygonArea(out[0].Geometry), 0) {
		t.Errorf("want the bridge fully absorbed (area 0), have %v", polygonArea(out[0].Geometry))
	}
	if !approxEqual(polygonArea(out[1].Geometry), 44) {
		t.Errorf("want the dumbbell's area unchanged at 44, have %v", polygonArea(out[1].Geometry))
	}
	if len(explodeRings(out[1].Geometry)) != 1 {
		t.Errorf("want the dumbbell to remain a single shell, have %d", len(explodeRings(out[1].Geometry)))
	}
}

func TestAreaError(t *testing.T) {
	rows := []MergeRow{
		{Area: 60}, {Area: 38},
	}
	e := AreaError(100, rows)
	if !approxEqual(e, 0.02) {
		t.Errorf("want area error 0.02, have %v", e)
	}
}
