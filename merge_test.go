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

func TestDissolveByMergeIDUnionsGroupsAndCarriesReferenceAttributes(t *testing.T) {
	shapeID := "D1"
	rows := []MergeRow{
		{PartitionRow: PartitionRow{ShapeID: &shapeID, ParentID: "C1", Geometry: geom.Polygon{square(0, 0, 5, 10)}}},
		{PartitionRow: PartitionRow{ParentID: "C1", Geometry: geom.Polygon{square(5, 0, 10, 10)}}, Mergeable: true},
	}
	zero, one := 0, 0
	mergeID := []*int{&zero, &one}

	out := dissolveByMergeID(rows, mergeID)
	if len(out) != 1 {
		t.Fatalf("want both rows dissolved into 1 group, have %d", len(out))
	}
	if out[0].ShapeID == nil || *out[0].ShapeID != shapeID {
		t.Error("want the dissolved row to carry the reference row's shape_id")
	}
	if out[0].Mergeable {
		t.Error("want the dissolved row marked non-mergeable")
	}
	if got := polygonArea(out[0].Geometry); !approxEqual(got, 100) {
		t.Errorf("want the union's area to be 100, have %v", got)
	}
}

func TestDissolveByMergeIDDropsUnassignedRows(t *testing.T) {
	rows := []MergeRow{
		{PartitionRow: PartitionRow{ParentID: "C1", Geometry: geom.Polygon{square(0, 0, 5, 10)}}, Mergeable: true},
	}
	out := dissolveByMergeID(rows, []*int{nil})
	if len(out) != 0 {
		t.Fatalf("want an unassigned mergeable row dropped, have %d rows", len(out))
	}
}

func TestNextScheduleLadder(t *testing.T) {
	p := mergeParams{threshold: 0.5, neighbors: 2}
	p = nextSchedule(p)
	if p.threshold != 0.7 || p.neighbors != 3 {
		t.Fatalf("want (0.7, 3) after the first relaxation, have (%v, %v)", p.threshold, p.neighbors)
	}
	for p.neighbors == 3 {
		p = nextSchedule(p)
	}
	if p.threshold != 0.7 {
		t.Fatalf("want the ladder to jump back to threshold 0.7 once it decays past 0.4, have %v", p.threshold)
	}
	if p.neighbors < 1000 {
		t.Fatalf("want the neighbor count to become effectively unbounded, have %v", p.neighbors)
	}
}

func TestHasMergeable(t *testing.T) {
	rows := []MergeRow{{Mergeable: false}, {Mergeable: false}}
	if hasMergeable(rows) {
		t.Error("want hasMergeable false when no row is mergeable")
	}
	rows = append(rows, MergeRow{Mergeable: true})
	if !hasMergeable(rows) {
		t.Error("want hasMergeable true when a row is mergeable")
	}
}
