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

package geomio

import (
	"fmt"

	"github.com/ctessum/geom"
	sgeos "github.com/spatial-go/geos"
)

// quadSegs is the number of line segments GEOS uses to approximate a
// quarter circle when rounding buffer corners; 8 matches Shapely's default
// resolution, which is what the original source relied on.
const quadSegs = 8

var algorithm = sgeos.GEOAlgorithm{}

// Buffer dilates (d > 0) or erodes (d < 0) p by d using GEOS, round-tripping
// through WKT since ctessum/geom has no buffer implementation of its own.
// A failure to parse GEOS's result, rather than a GEOS-side topology
// failure, is returned as a plain error: callers that want retry-on-
// exception semantics wrap Buffer themselves (see retry.go).
func Buffer(p geom.Polygon, d float64) (geom.MultiPolygon, error) {
	wkt := EncodeWKT(p)
	in, err := sgeos.UnmarshalString(wkt)
	if err != nil {
		return nil, fmt.Errorf("geomio: parsing polygon as WKT: %w", err)
	}
	out := algorithm.Buffer(in, d, quadSegs)
	if out == nil {
		return nil, fmt.Errorf("geomio: geos buffer(%v) returned no geometry", d)
	}
	result, err := DecodeWKT(sgeos.MarshalString(out))
	if err != nil {
		return nil, fmt.Errorf("geomio: decoding buffered geometry: %w", err)
	}
	return result, nil
}

// DoubleBuffer applies the buffer(+r).buffer(-r) smoothing pass used
// throughout the engine (C1, C4, C5) to erase sub-tolerance numerical
// artefacts: small self-intersections and spurious slivers vanish under
// dilation and don't reappear under the matching erosion.
func DoubleBuffer(p geom.Polygon, r float64) (geom.MultiPolygon, error) {
	dilated, err := Buffer(p, r)
	if err != nil {
		return nil, err
	}
	if len(dilated) == 0 {
		return geom.MultiPolygon{}, nil
	}
	var eroded geom.MultiPolygon
	for _, shell := range dilated {
		e, err := Buffer(shell, -r)
		if err != nil {
			return nil, err
		}
		eroded = append(eroded, e...)
	}
	return eroded, nil
}
