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
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/collijk/geofuse/internal/geomio"
)

// ParentStatus names the terminal state a coarse parent reached in the
// harmonizer's per-parent state machine (SPEC_FULL.md §4.7).
type ParentStatus string

const (
	StatusDegenerate ParentStatus = "DEGENERATE_DISSOLVED"
	StatusDone       ParentStatus = "DONE"
	StatusSkipped    ParentStatus = "SKIPPED"
	StatusFatal      ParentStatus = "FATAL"
)

// ParentReport records what happened to one coarse parent.
type ParentReport struct {
	ParentID string
	Status   ParentStatus
	Err      error
	Metrics  ParentMetrics
}

// HarmonizationReport is the full output of a Harmonizer.Run call: the new
// detailed layer, plus a per-parent accounting of how it got there.
type HarmonizationReport struct {
	Rows    []ShapeRow
	Parents []ParentReport
}

// areaErrorGate is the fractional area discrepancy above which overlap
// correction (C6) is skipped outright, since a partition that has drifted
// this far from its parent's area is broken in a way pairwise subtraction
// cannot fix (SPEC_FULL.md §4.6).
const areaErrorGate = 0.002

// Harmonizer orchestrates C1 through C6 for every coarse parent (C7).
type Harmonizer struct {
	ClassifyParams ClassifyParams
	MergeParams    MergeParams
	Strategy       Strategy
	BufferSchedule BufferSchedule
	MaxIterations  int

	Metrics *AlgorithmMetrics
	Perf    *PerformanceMetrics
}

// NewHarmonizer returns a Harmonizer configured with SPEC_FULL.md's default
// thresholds and a collapse-loop bound of 5 iterations.
func NewHarmonizer() *Harmonizer {
	return &Harmonizer{
		ClassifyParams: DefaultClassifyParams,
		MergeParams:    DefaultMergeParams,
		Strategy:       NeighborWeighted,
		BufferSchedule: DefaultBufferSchedule,
		MaxIterations:  5,
		Metrics:        &AlgorithmMetrics{},
		Perf:           NewPerformanceMetrics(),
	}
}

// Run harmonizes detailed against coarse, processing each coarse parent
// independently across a worker pool sized to GOMAXPROCS, the same index-
// striding pattern the teacher's Calculations uses over grid cells.
func (h *Harmonizer) Run(ctx context.Context, coarse []ShapeRow, detailed []DetailedRow) (*HarmonizationReport, error) {
	if err := ValidateCoarse(coarse); err != nil {
		return nil, err
	}
	if err := ValidateDetailed(detailed); err != nil {
		return nil, err
	}

	subParents, originalID, renumberedID := explodeCoarse(coarse)

	var partitioned []PartitionRow
	err := h.Perf.Time("partition", func() error {
		var perr error
		partitioned, perr = Partition(subParents, detailed)
		return perr
	})
	if err != nil {
		return nil, err
	}

	classified := Classify(partitioned, h.ClassifyParams)

	byParent := make(map[string][]MergeRow)
	for _, r := range classified {
		byParent[r.ParentID] = append(byParent[r.ParentID], r)
	}

	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	results := make([]struct {
		rows   []ShapeRow
		report ParentReport
	}, len(subParents))

	for pp := 0; pp < nprocs; pp++ {
		wg.Add(1)
		go func(pp int) {
			defer wg.Done()
			for ii := pp; ii < len(subParents); ii += nprocs {
				select {
				case <-ctx.Done():
					results[ii].report = ParentReport{ParentID: subParents[ii].ShapeID, Status: StatusFatal, Err: ctx.Err()}
					continue
				default:
				}
				c := subParents[ii]
				rows, report := h.processParent(c, byParent[c.ShapeID])
				// Re-identify (spec.md §4.7 step 8): every output row's
				// parent_id is rewritten back to the un-suffixed coarse
				// identity, and a dissolve-to-self row (the degenerate case)
				// is renumbered from its internal "{shape_id}_{k}" working
				// id to the public "{parent_id}.{k}" form.
				for i := range rows {
					if rows[i].ShapeID == c.ShapeID {
						rows[i].ShapeID = renumberedID[c.ShapeID]
					}
					rows[i].ParentID = originalID[c.ShapeID]
				}
				results[ii].rows = rows
				results[ii].report = report
			}
		}(pp)
	}
	wg.Wait()

	report := &HarmonizationReport{}
	for _, r := range results {
		report.Rows = append(report.Rows, r.rows...)
		report.Parents = append(report.Parents, r.report)
		h.Metrics.Record(r.report.Metrics)
	}
	return report, nil
}

// explodeCoarse implements spec.md §4.7 step 1: a coarse parent whose
// geometry is more than one disjoint shell (a MultiPolygon smuggled through
// the Polygon ring-bag representation) is split into one sub-parent per
// shell, so each island is harmonized as its own independent parent. A
// single-shell parent passes through unchanged. originalID maps every
// sub-parent's working shape_id back to the real, un-suffixed parent
// identity; renumberedID maps it to the public per-island identity
// ("{shape_id}.{k}") used when a sub-parent dissolves to itself.
func explodeCoarse(coarse []ShapeRow) (subParents []ShapeRow, originalID, renumberedID map[string]string) {
	originalID = make(map[string]string, len(coarse))
	renumberedID = make(map[string]string, len(coarse))

	for _, c := range coarse {
		shells := explodeRings(c.Geometry)
		if len(shells) <= 1 {
			subParents = append(subParents, c)
			originalID[c.ShapeID] = c.ShapeID
			renumberedID[c.ShapeID] = c.ShapeID
			continue
		}

		for k, shell := range shells {
			sub := c
			sub.ShapeID = fmt.Sprintf("%s_%d", c.ShapeID, k+1)
			sub.PathToTopParent = fmt.Sprintf("%s.%d", c.PathToTopParent, k+1)
			sub.Geometry = shell
			subParents = append(subParents, sub)
			originalID[sub.ShapeID] = c.ShapeID
			renumberedID[sub.ShapeID] = fmt.Sprintf("%s.%d", c.ShapeID, k+1)
		}
	}
	return subParents, originalID, renumberedID
}

// processParent runs the per-parent state machine: INIT -> CLASSIFIED ->
// COLLAPSE_ITER (bounded by MaxIterations) -> FILTERED -> CORRECTED|SKIPPED
// -> RELABELED -> DONE.
func (h *Harmonizer) processParent(c ShapeRow, rows []MergeRow) ([]ShapeRow, ParentReport) {
	start := time.Now()
	metrics := ParentMetrics{ParentID: c.ShapeID}
	metrics.Start = snapshot(rows)

	if len(rows) == 0 || allMergeable(rows) {
		metrics.End = metrics.Start
		metrics.ProcessingTime = time.Since(start)
		return []ShapeRow{{
			ShapeID:         c.ShapeID,
			ShapeName:       c.ShapeName,
			ParentID:        c.ParentID,
			PathToTopParent: c.PathToTopParent,
			Level:           c.Level,
			Geometry:        c.Geometry,
		}}, ParentReport{ParentID: c.ShapeID, Status: StatusDegenerate, Metrics: metrics}
	}

	iterations := 0
	for iterations < h.MaxIterations && hasMergeable(rows) {
		iterations++
		merged, err := Merge(rows, h.Strategy, h.MergeParams)
		if err != nil {
			metrics.ProcessingTime = time.Since(start)
			return nil, ParentReport{ParentID: c.ShapeID, Status: StatusFatal, Err: err, Metrics: metrics}
		}

		repaired, err := OnCondition(
			"collapse_multipolygons",
			merged,
			func(rs []MergeRow) ([]MergeRow, error) { return CollapseMultiPolygons(rs) },
			HasMultiPolygon,
			bufferMergeRows,
			h.BufferSchedule,
		)
		if err != nil {
			metrics.ProcessingTime = time.Since(start)
			return nil, ParentReport{ParentID: c.ShapeID, Status: StatusFatal, Err: err, Metrics: metrics}
		}

		repartitioned, err := Partition([]ShapeRow{c}, detailedFrom(repaired))
		if err != nil {
			metrics.ProcessingTime = time.Since(start)
			return nil, ParentReport{ParentID: c.ShapeID, Status: StatusFatal, Err: err, Metrics: metrics}
		}
		rows = Classify(repartitioned, h.ClassifyParams)
	}
	metrics.Iterations = iterations

	areaErrorBefore := AreaError(polygonArea(c.Geometry), rows)
	metrics.AreaErrorBefore = areaErrorBefore

	status := StatusDone
	if areaErrorBefore <= areaErrorGate {
		corrected, err := EliminateOverlaps(rows)
		if err != nil {
			metrics.ProcessingTime = time.Since(start)
			return nil, ParentReport{ParentID: c.ShapeID, Status: StatusFatal, Err: err, Metrics: metrics}
		}
		rows = corrected
		metrics.AreaErrorAfter = AreaError(polygonArea(c.Geometry), rows)
	} else {
		status = StatusSkipped
		metrics.AreaErrorAfter = areaErrorBefore
	}

	out, err := relabel(c, rows)
	if err != nil {
		metrics.ProcessingTime = time.Since(start)
		return nil, ParentReport{ParentID: c.ShapeID, Status: StatusFatal, Err: err, Metrics: metrics}
	}

	metrics.End = snapshot(rows)
	metrics.ProcessingTime = time.Since(start)
	log.WithFields(log.Fields{
		"parent_id":  c.ShapeID,
		"status":     status,
		"iterations": iterations,
	}).Debug("harmonized parent")
	return out, ParentReport{ParentID: c.ShapeID, Status: status, Metrics: metrics}
}

func allMergeable(rows []MergeRow) bool {
	for _, r := range rows {
		if !r.Mergeable {
			return false
		}
	}
	return true
}

// relabel assigns final identities: a row that carries a surviving detailed
// ShapeID keeps it unless another row of the same parent already claimed
// it (a name collision left over from merging two same-named fragments
// from a multi-shell coarse parent), in which case it is renumbered
// "{parent_id}.{k}". A row with no detailed identity at all is numbered the
// same way. Every output row's geometry must be a single shell; a
// surviving multi-shell fragment at this point is fatal, since C5 already
// had its chance to resolve it.
func relabel(c ShapeRow, rows []MergeRow) ([]ShapeRow, error) {
	seen := make(map[string]bool, len(rows))
	next := 1
	out := make([]ShapeRow, 0, len(rows))
	for _, r := range rows {
		if polygonArea(r.Geometry) <= sliverArea {
			continue
		}
		if len(explodeRings(r.Geometry)) > 1 {
			return nil, &FatalError{ParentID: c.ShapeID, Stage: "relabel", Err: fmt.Errorf("row still has a multi-shell geometry")}
		}

		var id, name string
		if r.ShapeID != nil && !seen[*r.ShapeID] {
			id = *r.ShapeID
			if r.ShapeName != nil {
				name = *r.ShapeName
			} else {
				name = id
			}
		} else {
			id = fmt.Sprintf("%s.%d", c.ShapeID, next)
			name = id
			next++
		}
		seen[id] = true

		level := c.Level + 1
		if r.Level != nil {
			level = *r.Level
		}
		out = append(out, ShapeRow{
			ShapeID:         id,
			ShapeName:       name,
			ParentID:        c.ShapeID,
			PathToTopParent: c.PathToTopParent + "|" + id,
			Level:           level,
			Geometry:        r.Geometry,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShapeID < out[j].ShapeID })
	return out, nil
}

func snapshot(rows []MergeRow) ParentAreaSnapshot {
	var ref, merge float64
	for _, r := range rows {
		if r.Mergeable {
			merge += r.Area
		} else {
			ref += r.Area
		}
	}
	total := ref + merge
	s := ParentAreaSnapshot{ReferenceArea: ref, MergeableArea: merge}
	if total > 0 {
		s.MergeablePct = merge / total
	}
	return s
}

// detailedFrom turns a partially-resolved MergeRow set back into the
// DetailedRow shape Partition expects, so a parent can be repartitioned
// against its own merged fragments on the next collapse iteration.
func detailedFrom(rows []MergeRow) []DetailedRow {
	out := make([]DetailedRow, 0, len(rows))
	for i, r := range rows {
		id := fmt.Sprintf("_working_%d", i)
		name := id
		level := 0
		if r.ShapeID != nil {
			id = *r.ShapeID
		}
		if r.ShapeName != nil {
			name = *r.ShapeName
		}
		if r.Level != nil {
			level = *r.Level
		}
		out = append(out, DetailedRow{ShapeID: id, ShapeName: name, Level: level, Geometry: r.Geometry})
	}
	return out
}

// bufferMergeRows is the BufferFunc C5's retry loop uses: every row's
// geometry is replaced by its own buffer(+r).buffer(-r) smoothing.
func bufferMergeRows(rows []MergeRow, r float64) ([]MergeRow, error) {
	out := make([]MergeRow, len(rows))
	for i, row := range rows {
		smoothed, err := geomio.DoubleBuffer(row.Geometry, r)
		if err != nil {
			return nil, fmt.Errorf("geofuse: buffering merge row at radius %v: %w", r, err)
		}
		row.Geometry = firstShellOrUnion(smoothed)
		out[i] = row
	}
	return out, nil
}
