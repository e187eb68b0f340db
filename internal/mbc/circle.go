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

// Package mbc computes the minimum enclosing (bounding) circle of a point
// set, used by the mergeability classifier (C3) to score shape compactness.
// No library in the retrieved example pack implements this (ctessum/geom
// stops at axis-aligned Bounds), so it is a small, self-contained
// implementation of Welzl's randomized algorithm rather than a stand-in for
// a domain concern that belongs to a dependency.
package mbc

import (
	"math"
	"math/rand"

	"github.com/ctessum/geom"
)

// Circle is a minimum enclosing circle.
type Circle struct {
	Center geom.Point
	Radius float64
}

// Area returns the area of c.
func (c Circle) Area() float64 { return math.Pi * c.Radius * c.Radius }

// Of returns the minimum enclosing circle of a polygon's vertices (the
// union of all of its rings; the ring structure doesn't matter for a
// bounding circle, only the point cloud does).
func Of(p geom.Polygon) Circle {
	var pts []geom.Point
	for _, ring := range p {
		pts = append(pts, ring...)
	}
	return welzl(pts)
}

// welzl computes the minimum enclosing circle in expected O(n) time.
// Points are shuffled first so the algorithm's expected running time bound
// holds regardless of input order.
func welzl(pts []geom.Point) Circle {
	if len(pts) == 0 {
		return Circle{}
	}
	shuffled := make([]geom.Point, len(pts))
	copy(shuffled, pts)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	var boundary []geom.Point
	return welzlHelper(shuffled, boundary)
}

func welzlHelper(pts, boundary []geom.Point) Circle {
	if len(pts) == 0 || len(boundary) == 3 {
		return trivial(boundary)
	}
	p := pts[len(pts)-1]
	rest := pts[:len(pts)-1]
	c := welzlHelper(rest, boundary)
	if contains(c, p) {
		return c
	}
	return welzlHelper(rest, append(boundary, p))
}

func contains(c Circle, p geom.Point) bool {
	dx := p.X - c.Center.X
	dy := p.Y - c.Center.Y
	return dx*dx+dy*dy <= c.Radius*c.Radius+1e-10
}

func trivial(boundary []geom.Point) Circle {
	switch len(boundary) {
	case 0:
		return Circle{}
	case 1:
		return Circle{Center: boundary[0], Radius: 0}
	case 2:
		return circleFrom2(boundary[0], boundary[1])
	default:
		for i := 0; i < 3; i++ {
			for j := i + 1; j < 3; j++ {
				c := circleFrom2(boundary[i], boundary[j])
				if containsAll(c, boundary) {
					return c
				}
			}
		}
		return circleFrom3(boundary[0], boundary[1], boundary[2])
	}
}

func containsAll(c Circle, pts []geom.Point) bool {
	for _, p := range pts {
		if !contains(c, p) {
			return false
		}
	}
	return true
}

func circleFrom2(a, b geom.Point) Circle {
	center := geom.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	r := math.Hypot(a.X-center.X, a.Y-center.Y)
	return Circle{Center: center, Radius: r}
}

func circleFrom3(a, b, c geom.Point) Circle {
	ax, ay := b.X-a.X, b.Y-a.Y
	bx, by := c.X-a.X, c.Y-a.Y
	d := 2 * (ax*by - ay*bx)
	if math.Abs(d) < 1e-12 {
		// Degenerate (near-collinear) triple: fall back to the widest pair.
		pairs := [][2]geom.Point{{a, b}, {b, c}, {a, c}}
		best := circleFrom2(pairs[0][0], pairs[0][1])
		for _, pr := range pairs[1:] {
			cand := circleFrom2(pr[0], pr[1])
			if cand.Radius > best.Radius {
				best = cand
			}
		}
		return best
	}
	ux := (by*(ax*ax+ay*ay) - ay*(bx*bx+by*by)) / d
	uy := (ax*(bx*bx+by*by) - bx*(ax*ax+ay*ay)) / d
	center := geom.Point{X: a.X + ux, Y: a.Y + uy}
	r := math.Hypot(center.X-a.X, center.Y-a.Y)
	return Circle{Center: center, Radius: r}
}
