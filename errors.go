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

import "fmt"

// TopologyError marks a geometry-kernel failure that the retry-with-buffer
// wrapper (C1) is allowed to attempt to recover from: a panic recovered out
// of polyclip-go's boolean-op construction during partitioning. Errors from
// the GEOS-backed buffer kernel are plain errors, not TopologyErrors. Any
// other error propagates unrecovered.
type TopologyError struct {
	Op  string
	Err error
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("geofuse: topology exception in %s: %v", e.Op, e.Err)
}

func (e *TopologyError) Unwrap() error { return e.Err }

// FatalError marks an unrecoverable engine failure for one coarse parent:
// relabel returns one for a row that is still a multi-shell geometry. A
// buffer-retry schedule that hits its cap twice returns a plain wrapped
// error instead. Both are aggregated per parent by the harmonizer rather
// than aborting the whole run (SPEC_FULL.md §7).
type FatalError struct {
	ParentID string
	Stage    string
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("geofuse: fatal error for parent %q in %s: %v", e.ParentID, e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
