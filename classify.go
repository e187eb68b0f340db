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

import "github.com/collijk/geofuse/internal/mbc"

// ClassifyParams names the mergeability thresholds of SPEC_FULL.md §4.3.
type ClassifyParams struct {
	CompactnessThreshold  float64
	DetailedAreaThreshold float64
	CoarseAreaThreshold   float64
}

// DefaultClassifyParams matches the thresholds named in SPEC_FULL.md §4.3.
var DefaultClassifyParams = ClassifyParams{
	CompactnessThreshold:  0.05,
	DetailedAreaThreshold: 0.1,
	CoarseAreaThreshold:   0.1,
}

// Classify computes the per-row statistics (area, compactness, coarse/
// detailed share) and the mergeable flag for every PartitionRow (C3).
func Classify(rows []PartitionRow, p ClassifyParams) []MergeRow {
	out := make([]MergeRow, len(rows))
	for i, r := range rows {
		out[i] = MergeRow{PartitionRow: r}
		out[i].Area = polygonArea(r.Geometry)
		out[i].BoundingArea = mbc.Of(r.Geometry).Area()
		if out[i].BoundingArea > 0 {
			out[i].Compactness = out[i].Area / out[i].BoundingArea
		}
	}

	coarseArea := make(map[string]float64)
	detailedArea := make(map[string]float64)
	for _, r := range out {
		coarseArea[r.ParentID] += r.Area
		if r.ShapeID != nil {
			detailedArea[*r.ShapeID] += r.Area
		}
	}

	for i, r := range out {
		out[i].CoarseArea = coarseArea[r.ParentID]
		if out[i].CoarseArea > 0 {
			out[i].CoarseFraction = r.Area / out[i].CoarseArea
		}

		out[i].MissingFromAdmin = r.ShapeID == nil
		if r.ShapeID != nil {
			out[i].DetailedArea = detailedArea[*r.ShapeID]
			if out[i].DetailedArea > 0 {
				out[i].DetailedFraction = r.Area / out[i].DetailedArea
			}
		}

		out[i].SmallGeometry = out[i].DetailedFraction <= p.DetailedAreaThreshold &&
			out[i].CoarseFraction <= p.CoarseAreaThreshold
		// The "name-intended" reading of the sliver rule (SPEC_FULL.md §9 /
		// spec.md §9 open question): compare against compactness, not
		// coarse_fraction.
		out[i].SliverGeometry = out[i].DetailedFraction <= 2*p.DetailedAreaThreshold &&
			out[i].Compactness <= p.CompactnessThreshold

		out[i].Mergeable = out[i].MissingFromAdmin || out[i].SmallGeometry || out[i].SliverGeometry
	}

	return out
}
