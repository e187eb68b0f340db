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

// Package geomio bridges github.com/ctessum/geom's native Polygon/
// MultiPolygon representation and the WKT strings that
// github.com/spatial-go/geos expects. ctessum/geom does not implement
// buffering, so this is the one seam where the engine leaves the native
// polyclip-go path to reach for a GEOS-backed kernel.
package geomio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
)

// EncodeWKT renders p as a WKT POLYGON: p[0] is the exterior ring and every
// later ring is written as an interior ring. It does not split a p holding
// several disjoint shells into a MULTIPOLYGON; EncodeMultiWKT does that for
// a geom.MultiPolygon.
func EncodeWKT(p geom.Polygon) string {
	var b strings.Builder
	b.WriteString("POLYGON (")
	for i, ring := range p {
		if i > 0 {
			b.WriteString(", ")
		}
		writeRing(&b, ring)
	}
	b.WriteString(")")
	return b.String()
}

// EncodeMultiWKT renders mp as a WKT MULTIPOLYGON.
func EncodeMultiWKT(mp geom.MultiPolygon) string {
	var b strings.Builder
	b.WriteString("MULTIPOLYGON (")
	for i, p := range mp {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, ring := range p {
			if j > 0 {
				b.WriteString(", ")
			}
			writeRing(&b, ring)
		}
		b.WriteString(")")
	}
	b.WriteString(")")
	return b.String()
}

func writeRing(b *strings.Builder, ring []geom.Point) {
	b.WriteString("(")
	for i, pt := range ring {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(pt.X, 'g', -1, 64))
		b.WriteString(" ")
		b.WriteString(strconv.FormatFloat(pt.Y, 'g', -1, 64))
	}
	b.WriteString(")")
}

// DecodeWKT parses a WKT POLYGON or MULTIPOLYGON (as returned by GEOS after
// a buffer operation) back into a geom.MultiPolygon. A POLYGON decodes to a
// single-element result.
func DecodeWKT(wkt string) (geom.MultiPolygon, error) {
	s := strings.TrimSpace(wkt)
	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(upper, "POLYGON"):
		body, err := parens(s, len("POLYGON"))
		if err != nil {
			return nil, err
		}
		p, err := parsePolygonBody(body)
		if err != nil {
			return nil, err
		}
		return geom.MultiPolygon{p}, nil
	case strings.HasPrefix(upper, "MULTIPOLYGON"):
		body, err := parens(s, len("MULTIPOLYGON"))
		if err != nil {
			return nil, err
		}
		parts, err := splitTopLevel(body)
		if err != nil {
			return nil, err
		}
		mp := make(geom.MultiPolygon, 0, len(parts))
		for _, part := range parts {
			pb, err := parens(part, 0)
			if err != nil {
				return nil, err
			}
			p, err := parsePolygonBody(pb)
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil
	case upper == "GEOMETRYCOLLECTION EMPTY" || strings.HasSuffix(upper, "EMPTY"):
		return geom.MultiPolygon{}, nil
	default:
		return nil, fmt.Errorf("geomio: unsupported WKT geometry type in %q", wkt)
	}
}

func parens(s string, skip int) (string, error) {
	s = strings.TrimSpace(s[skip:])
	start := strings.Index(s, "(")
	if start < 0 {
		return "", fmt.Errorf("geomio: malformed WKT, no opening paren in %q", s)
	}
	if !strings.HasSuffix(strings.TrimSpace(s), ")") {
		return "", fmt.Errorf("geomio: malformed WKT, no closing paren in %q", s)
	}
	end := strings.LastIndex(s, ")")
	return s[start+1 : end], nil
}

func parsePolygonBody(body string) (geom.Polygon, error) {
	rings, err := splitTopLevel(body)
	if err != nil {
		return nil, err
	}
	p := make(geom.Polygon, 0, len(rings))
	for _, r := range rings {
		rb, err := parens(r, 0)
		if err != nil {
			return nil, err
		}
		ring, err := parseRing(rb)
		if err != nil {
			return nil, err
		}
		p = append(p, ring)
	}
	return p, nil
}

func parseRing(body string) ([]geom.Point, error) {
	coords := strings.Split(body, ",")
	ring := make([]geom.Point, 0, len(coords))
	for _, c := range coords {
		fields := strings.Fields(strings.TrimSpace(c))
		if len(fields) < 2 {
			return nil, fmt.Errorf("geomio: malformed coordinate %q", c)
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("geomio: parsing x coordinate: %w", err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("geomio: parsing y coordinate: %w", err)
		}
		ring = append(ring, geom.Point{X: x, Y: y})
	}
	return ring, nil
}

// splitTopLevel splits a comma-separated list of parenthesized groups,
// respecting nesting depth so that the commas inside a ring's coordinate
// list don't get mistaken for separators between rings or polygons.
func splitTopLevel(s string) ([]string, error) {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("geomio: unbalanced parens in %q", s)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("geomio: unbalanced parens in %q", s)
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts, nil
}
