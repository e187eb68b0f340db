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
	"context"
	"testing"

	"github.com/ctessum/geom"
)

func TestHarmonizerRunExactTilingNeedsNoMerging(t *testing.T) {
	coarse := []ShapeRow{
		{ShapeID: "C1", PathToTopParent: "C1", Geometry: geom.Polygon{square(0, 0, 10, 10)}},
	}
	detailed := []DetailedRow{
		{ShapeID: "D1", ShapeName: "west", Geometry: geom.Polygon{square(0, 0, 5, 10)}},
		{ShapeID: "D2", ShapeName: "east", Geometry: geom.Polygon{square(5, 0, 10, 10)}},
	}

	h := NewHarmonizer()
	report, err := h.Run(context.Background(), coarse, detailed)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Parents) != 1 {
		t.Fatalf("want 1 parent report, have %d", len(report.Parents))
	}
	if report.Parents[0].Status != StatusDone {
		t.Errorf("want status DONE, have %v (err: %v)", report.Parents[0].Status, report.Parents[0].Err)
	}
	if len(report.Rows) != 2 {
		t.Fatalf("want 2 output rows, have %d", len(report.Rows))
	}

	names := map[string]bool{}
	for _, r := range report.Rows {
		names[r.ShapeID] = true
		if r.ParentID != "C1" {
			t.Errorf("want parent_id C1, have %q", r.ParentID)
		}
	}
	if !names["D1"] || !names["D2"] {
		t.Errorf("want both original detailed identities preserved, have %v", names)
	}
}

func TestRunExplodesMultiShellCoarseParentIntoOneRowPerIsland(t *testing.T) {
	coarse := []ShapeRow{
		{
			ShapeID:         "A",
			ShapeName:       "Two Islands",
			PathToTopParent: "A",
			Geometry:        geom.Polygon{square(0, 0, 5, 5), square(20, 20, 25, 25)},
		},
	}

	h := NewHarmonizer()
	report, err := h.Run(context.Background(), coarse, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Rows) != 2 {
		t.Fatalf("want 2 output rows (one per island), have %d", len(report.Rows))
	}

	ids := map[string]bool{}
	for _, r := range report.Rows {
		if r.ParentID != "A" {
			t.Errorf("want parent_id A, have %q", r.ParentID)
		}
		ids[r.ShapeID] = true
	}
	if !ids["A.1"] || !ids["A.2"] {
		t.Errorf("want shape ids A.1 and A.2, have %v", ids)
	}
}

func TestProcessParentDegenerateAllMergeableDissolvesToParent(t *testing.T) {
	h := NewHarmonizer()
	c := ShapeRow{ShapeID: "C1", ShapeName: "Coarse One", PathToTopParent: "C1", Geometry: geom.Polygon{square(0, 0, 10, 10)}}
	rows := []MergeRow{
		{PartitionRow: PartitionRow{ParentID: "C1", Geometry: geom.Polygon{square(0, 0, 10, 10)}}, Mergeable: true},
	}

	out, report := h.processParent(c, rows)
	if report.Status != StatusDegenerate {
		t.Fatalf("want DEGENERATE_DISSOLVED, have %v", report.Status)
	}
	if len(out) != 1 || out[0].ShapeID != "C1" {
		t.Fatalf("want the parent's own geometry with its own identity, have %+v", out)
	}
}

func TestRelabelAssignsSyntheticIdentityToUnnamedRows(t *testing.T) {
	c := ShapeRow{ShapeID: "C1", PathToTopParent: "C1", Level: 1}
	rows := []MergeRow{
		{PartitionRow: PartitionRow{Geometry: geom.Polygon{square(0, 0, 10, 10)}}},
	}
	out, err := relabel(c, rows)
	if err != nil {
		t.Fatalf("relabel: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("want 1 row, have %d", len(out))
	}
	if out[0].ShapeID != "C1.1" {
		t.Errorf("want synthetic identity C1.1, have %q", out[0].ShapeID)
	}
	if out[0].Level != 2 {
		t.Errorf("want level parent+1 (2), have %d", out[0].Level)
	}
}

func TestRelabelRejectsSurvivingMultiShellGeometry(t *testing.T) {
	c := ShapeRow{ShapeID: "C1", PathToTopParent: "C1"}
	rows := []MergeRow{
		{PartitionRow: PartitionRow{Geometry: geom.Polygon{square(0, 0, 1, 1), square(10, 10, 11, 11)}}},
	}
	if _, err := relabel(c, rows); err == nil {
		t.Fatal("want an error for a surviving multi-shell geometry")
	}
}
