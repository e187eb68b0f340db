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
	"github.com/ctessum/geom/index/rtree"

	"github.com/collijk/geofuse/internal/geomio"
)

// sliverArea is the area threshold (in CRS units²) below which a partition
// fragment is dropped outright as numerical noise (SPEC_FULL.md §4.2).
const sliverArea = 1e-3

// indexedDetailed wraps a DetailedRow so it can live in an
// github.com/ctessum/geom/index/rtree spatial index, the same pattern the
// teacher uses for its grid cells (see popgrid.go's getCells).
type indexedDetailed struct {
	DetailedRow
}

func (d *indexedDetailed) Bounds() *geom.Bounds { return d.Geometry.Bounds() }

// Partition overlays detailed onto coarse: an identity overlay that yields
// one PartitionRow per (coarse, detailed) intersection, plus one
// PartitionRow per coarse-only residual ("hole"), for every coarse parent.
// This is C2.
func Partition(coarse []ShapeRow, detailed []DetailedRow) ([]PartitionRow, error) {
	var out []PartitionRow
	for _, c := range coarse {
		rows, err := OnTopologyError(
			"partition",
			detailed,
			func(d []DetailedRow) ([]PartitionRow, error) {
				return partitionOne(c, d)
			},
			bufferDetailed,
			DefaultBufferSchedule,
		)
		if err != nil {
			return nil, fmt.Errorf("geofuse: partitioning parent %q: %w", c.ShapeID, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// partitionOne computes the partition rows for a single coarse parent. It
// may return a *TopologyError, which the caller's retry wrapper recovers
// from by buffer-smoothing the detailed candidates; the index is rebuilt
// from whatever detailed slice was actually passed in (the original one on
// the first attempt, a buffer-smoothed one on every retry), since a stale
// index built from the pre-smoothing geometry would make every retry fail
// identically.
func partitionOne(c ShapeRow, detailed []DetailedRow) (rows []PartitionRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TopologyError{Op: "partition", Err: fmt.Errorf("%v", r)}
		}
	}()

	index := rtree.NewTree(25, 50)
	for i := range detailed {
		index.Insert(&indexedDetailed{detailed[i]})
	}

	bounds := c.Geometry.Bounds()
	candidates := index.SearchIntersect(bounds)

	var covered geom.Polygonal = geom.Polygon{}
	first := true

	for _, cand := range candidates {
		d := cand.(*indexedDetailed)
		inter := c.Geometry.Intersection(d.Geometry)
		if polygonArea(inter) <= sliverArea {
			continue
		}

		shapeID, shapeName, level := d.ShapeID, d.ShapeName, d.Level
		for _, shell := range explodeRings(inter) {
			if polygonArea(shell) <= sliverArea {
				continue
			}
			rows = append(rows, PartitionRow{
				ShapeID:         &shapeID,
				ShapeName:       &shapeName,
				ParentID:        c.ShapeID,
				PathToTopParent: c.PathToTopParent,
				Level:           &level,
				Geometry:        shell,
			})
		}

		if first {
			covered = inter
			first = false
		} else {
			covered = covered.Union(inter)
		}
	}

	var leftover geom.Polygon
	if first {
		leftover = c.Geometry
	} else {
		leftover = c.Geometry.Difference(covered)
	}
	for _, shell := range explodeRings(leftover) {
		if polygonArea(shell) <= sliverArea {
			continue
		}
		rows = append(rows, PartitionRow{
			ParentID:        c.ShapeID,
			PathToTopParent: c.PathToTopParent,
			Geometry:        shell,
		})
	}

	return rows, nil
}

// bufferDetailed is the BufferFunc C1 uses to retry a failed overlay: each
// detailed geometry is replaced with its own buffer(+r).buffer(-r)
// smoothing, exactly as buffer_on_exception does in the original source.
func bufferDetailed(rows []DetailedRow, r float64) ([]DetailedRow, error) {
	out := make([]DetailedRow, len(rows))
	for i, d := range rows {
		smoothed, err := bufferPolygonal(d.Geometry, r)
		if err != nil {
			return nil, err
		}
		d.Geometry = smoothed
		out[i] = d
	}
	return out, nil
}

// bufferPolygonal double-buffers every shell of a Polygon or MultiPolygon
// and recombines the result as a MultiPolygon (the general Polygonal case).
func bufferPolygonal(g geom.Polygonal, r float64) (geom.Polygonal, error) {
	var result geom.MultiPolygon
	for _, shell := range g.Polygons() {
		smoothed, err := geomio.DoubleBuffer(shell, r)
		if err != nil {
			return nil, fmt.Errorf("geofuse: buffering geometry at radius %v: %w", r, err)
		}
		result = append(result, smoothed...)
	}
	return result, nil
}
