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

func square(x0, y0, x1, y1 float64) []geom.Point {
	return []geom.Point{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0},
	}
}

func TestExplodeRingsSingleShell(t *testing.T) {
	p := geom.Polygon{square(0, 0, 1, 1)}
	shells := explodeRings(p)
	if len(shells) != 1 {
		t.Fatalf("want 1 shell, have %d", len(shells))
	}
}

func TestExplodeRingsTwoDisjointShells(t *testing.T) {
	p := geom.Polygon{square(0, 0, 1, 1), square(10, 10, 11, 11)}
	shells := explodeRings(p)
	if len(shells) != 2 {
		t.Fatalf("want 2 shells, have %d", len(shells))
	}
	for _, s := range shells {
		if polygonArea(s) <= 0 {
			t.Errorf("shell has non-positive area: %v", s)
		}
	}
}

func TestExplodeRingsShellWithHole(t *testing.T) {
	shell := square(0, 0, 10, 10)
	hole := square(4, 4, 6, 6)
	// Reverse the hole's winding to match what a real polyclip-go
	// difference result looks like. Hole detection itself does not depend
	// on winding: both explodeRings and Area use ring containment.
	for i, j := 0, len(hole)-1; i < j; i, j = i+1, j-1 {
		hole[i], hole[j] = hole[j], hole[i]
	}
	p := geom.Polygon{shell, hole}
	shells := explodeRings(p)
	if len(shells) != 1 {
		t.Fatalf("want 1 shell (with its hole attached), have %d", len(shells))
	}
	if len(shells[0]) != 2 {
		t.Fatalf("want the shell to retain its hole ring, have %d rings", len(shells[0]))
	}
	area := polygonArea(shells[0])
	if area <= 0 || area >= 100 {
		t.Errorf("want 0 < area < 100 (hole subtracted), have %v", area)
	}
}

func TestValidateCoarseRejectsDuplicateShapeID(t *testing.T) {
	rows := []ShapeRow{
		{ShapeID: "a", PathToTopParent: "a", Geometry: geom.Polygon{square(0, 0, 1, 1)}},
		{ShapeID: "a", PathToTopParent: "b", Geometry: geom.Polygon{square(1, 1, 2, 2)}},
	}
	if err := ValidateCoarse(rows); err == nil {
		t.Fatal("want an error for duplicate shape_id, have nil")
	}
}

func TestValidateCoarseRejectsEmptyGeometry(t *testing.T) {
	rows := []ShapeRow{{ShapeID: "a", PathToTopParent: "a"}}
	if err := ValidateCoarse(rows); err == nil {
		t.Fatal("want an error for empty geometry, have nil")
	}
}

func TestValidateDetailedRejectsMissingShapeID(t *testing.T) {
	rows := []DetailedRow{{Geometry: geom.Polygon{square(0, 0, 1, 1)}}}
	if err := ValidateDetailed(rows); err == nil {
		t.Fatal("want an error for empty shape_id, have nil")
	}
}
