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
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// BufferSchedule controls the buffer-retry ladder used by C1 and the
// multipolygon repair pass (C5). The merger's seam-smoothing step does not
// use it; it smooths at a fixed radius of 1.
// Start doubles on every retry; once it exceeds Max the schedule is
// perturbed once (Start*1.01) to dodge a degenerate floating-point fixed
// point, and a second cap hit is fatal.
type BufferSchedule struct {
	Start float64
	Max   float64
}

// DefaultBufferSchedule matches SPEC_FULL.md §4.1: start at 2⁻¹⁶, cap at
// 2⁻⁸.
var DefaultBufferSchedule = BufferSchedule{
	Start: 1.0 / 65536,
	Max:   1.0 / 256,
}

// BufferFunc replaces the geometry of rows with a double-buffered,
// smoothed version at radius r. Implementations must not mutate rows in
// place; the retry wrappers rely on being able to retry against the
// original input.
type BufferFunc[T any] func(rows T, r float64) (T, error)

// Transform is a geometry transform that may fail with a recoverable
// *TopologyError.
type Transform[T any] func(rows T) (T, error)

// Condition reports whether rows still exhibit the defect a predicate-
// driven retry is trying to clear (e.g. "still contains a MultiPolygon").
type Condition[T any] func(rows T) bool

// OnTopologyError retries f against progressively larger buffer-smoothed
// copies of rows whenever f fails with a *TopologyError, following the
// schedule in sched. It is the Go analogue of geofuse's buffer_on_exception
// decorator: f itself is never buffered, only its input is, and the buffer
// widens geometrically until it either clears the exception or the
// schedule is exhausted.
func OnTopologyError[T any](op string, rows T, f Transform[T], buffer BufferFunc[T], sched BufferSchedule) (T, error) {
	r := sched.Start
	perturbed := false
	cur := rows
	for {
		result, err := f(cur)
		var topErr *TopologyError
		if err == nil {
			return result, nil
		}
		if !errors.As(err, &topErr) {
			var zero T
			return zero, err
		}

		if r > sched.Max {
			if perturbed {
				var zero T
				return zero, fmt.Errorf("geofuse: %s: max buffer size reached: %w", op, err)
			}
			r = sched.Start * 1.01
			perturbed = true
		}

		log.WithFields(log.Fields{"op": op, "buffer": r}).Debug("caught topology exception, retrying with buffer")

		next, bufErr := buffer(cur, r)
		if bufErr != nil {
			var zero T
			return zero, fmt.Errorf("geofuse: %s: buffering input for retry: %w", op, bufErr)
		}
		cur = next
		r *= 2
	}
}

// OnCondition retries f, then re-buffers and re-runs f's *input* while
// cond(result) still holds, following the same schedule as OnTopologyError.
// This is the predicate-driven flavor of C1, used where the defect isn't an
// exception but a structural property of the output (e.g. C5's "is this
// still a MultiPolygon").
func OnCondition[T any](op string, rows T, f Transform[T], cond Condition[T], buffer BufferFunc[T], sched BufferSchedule) (T, error) {
	cur := rows
	result, err := f(cur)
	if err != nil {
		var zero T
		return zero, err
	}

	r := sched.Start
	perturbed := false
	for cond(result) {
		if r > sched.Max {
			if perturbed {
				var zero T
				return zero, fmt.Errorf("geofuse: %s: retry condition still met after max buffer size reached", op)
			}
			r = sched.Start * 1.01
			perturbed = true
		}

		log.WithFields(log.Fields{"op": op, "buffer": r}).Debug("retry condition met, retrying with buffer")

		next, bufErr := buffer(cur, r)
		if bufErr != nil {
			var zero T
			return zero, fmt.Errorf("geofuse: %s: buffering input for retry: %w", op, bufErr)
		}
		cur = next
		result, err = f(cur)
		if err != nil {
			var zero T
			return zero, err
		}
		r *= 2
	}
	return result, nil
}
