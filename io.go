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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
)

// geojsonFeature and geojsonFeatureCollection mirror the GeoJSON feature
// wrapper that github.com/ctessum/geom/encoding/geojson stops short of
// providing: that package only knows how to encode a bare geom.Geom, so the
// Feature/FeatureCollection envelope is assembled by hand around its
// Geometry type.
type geojsonFeature struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   *geojson.Geometry      `json:"geometry"`
}

type geojsonFeatureCollection struct {
	Type     string           `json:"type"`
	Features []geojsonFeature `json:"features"`
}

// shapeRecord is the on-disk shape of a ShapeRow: an embedded geom.Polygon
// (named "Polygon" so the reflection-based shp.Encoder/Decoder recognize
// it as the geometry field) plus its flattened attributes.
type shapeRecord struct {
	geom.Polygon
	ShapeID   string
	ShapeName string
	ParentID  string
	PathTop   string
	Level     int
}

// detailedRecord is the on-disk shape of a DetailedRow.
type detailedRecord struct {
	geom.Polygon
	ShapeID   string
	ShapeName string
	Level     int
}

// ReadCoarseShapefile reads a coarse partition layer (C7's "coarse" input)
// from a shapefile, matching the attribute layout written by
// WriteCoarseShapefile.
func ReadCoarseShapefile(path string) ([]ShapeRow, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("geofuse: opening coarse shapefile %q: %w", path, err)
	}
	defer dec.Close()

	var out []ShapeRow
	for {
		var rec shapeRecord
		if !dec.DecodeRow(&rec) {
			break
		}
		out = append(out, ShapeRow{
			ShapeID:         rec.ShapeID,
			ShapeName:       rec.ShapeName,
			ParentID:        rec.ParentID,
			PathToTopParent: rec.PathTop,
			Level:           rec.Level,
			Geometry:        rec.Polygon,
		})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("geofuse: reading coarse shapefile %q: %w", path, err)
	}
	return out, nil
}

// WriteCoarseShapefile writes the harmonizer's final detailed layer (itself
// a []ShapeRow) out as a shapefile.
func WriteCoarseShapefile(path string, rows []ShapeRow) error {
	enc, err := shp.NewEncoder(path, shapeRecord{})
	if err != nil {
		return fmt.Errorf("geofuse: creating shapefile %q: %w", path, err)
	}
	defer enc.Close()
	for _, r := range rows {
		rec := shapeRecord{
			Polygon:   r.Geometry,
			ShapeID:   r.ShapeID,
			ShapeName: r.ShapeName,
			ParentID:  r.ParentID,
			PathTop:   r.PathToTopParent,
			Level:     r.Level,
		}
		if err := enc.Encode(&rec); err != nil {
			return fmt.Errorf("geofuse: writing shapefile %q: %w", path, err)
		}
	}
	return nil
}

// ReadDetailedShapefile reads the nominally-nested detailed layer (C7's
// "detailed" input).
func ReadDetailedShapefile(path string) ([]DetailedRow, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("geofuse: opening detailed shapefile %q: %w", path, err)
	}
	defer dec.Close()

	var out []DetailedRow
	for {
		var rec detailedRecord
		if !dec.DecodeRow(&rec) {
			break
		}
		out = append(out, DetailedRow{
			ShapeID:   rec.ShapeID,
			ShapeName: rec.ShapeName,
			Level:     rec.Level,
			Geometry:  rec.Polygon,
		})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("geofuse: reading detailed shapefile %q: %w", path, err)
	}
	return out, nil
}

// WriteDetailedGeoJSON writes rows as a GeoJSON FeatureCollection, the
// format-agnostic alternative to the shapefile writers above
// (SPEC_FULL.md §6).
func WriteDetailedGeoJSON(path string, rows []ShapeRow) error {
	fc := geojsonFeatureCollection{Type: "FeatureCollection"}
	for _, r := range rows {
		g, err := geojson.ToGeoJSON(r.Geometry)
		if err != nil {
			return fmt.Errorf("geofuse: converting %q to GeoJSON: %w", r.ShapeID, err)
		}
		fc.Features = append(fc.Features, geojsonFeature{
			Type:     "Feature",
			Geometry: g,
			Properties: map[string]interface{}{
				"shape_id":           r.ShapeID,
				"shape_name":         r.ShapeName,
				"parent_id":          r.ParentID,
				"path_to_top_parent": r.PathToTopParent,
				"level":              r.Level,
			},
		})
	}
	b, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("geofuse: marshaling GeoJSON: %w", err)
	}
	if !strings.HasSuffix(path, ".geojson") && !strings.HasSuffix(path, ".json") {
		path += ".geojson"
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("geofuse: writing %q: %w", path, err)
	}
	return nil
}
