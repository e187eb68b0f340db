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
	"time"
)

func TestAlgorithmMetricsRecordAndAverageIterations(t *testing.T) {
	m := &AlgorithmMetrics{}
	m.Record(ParentMetrics{ParentID: "C1", Iterations: 2})
	m.Record(ParentMetrics{ParentID: "C2", Iterations: 4})

	if got := m.AverageIterations(); got != 3 {
		t.Errorf("want average iterations 3, have %v", got)
	}
	if len(m.Parents()) != 2 {
		t.Errorf("want 2 recorded parents, have %d", len(m.Parents()))
	}
}

func TestPerformanceMetricsTimeRecordsCallsAndAverage(t *testing.T) {
	p := NewPerformanceMetrics()
	if err := p.Time("partition", func() error {
		time.Sleep(time.Millisecond)
		return nil
	}); err != nil {
		t.Fatalf("Time: %v", err)
	}
	if err := p.Time("partition", func() error {
		time.Sleep(time.Millisecond)
		return nil
	}); err != nil {
		t.Fatalf("Time: %v", err)
	}

	if got := p.Calls("partition"); got != 2 {
		t.Fatalf("want 2 calls recorded, have %d", got)
	}
	if p.Average("partition") <= 0 {
		t.Error("want a positive average duration")
	}
	if p.Calls("merge") != 0 {
		t.Error("want an unrecorded op to report 0 calls")
	}
}
