package main

import (
	"fmt"
	"strconv"
	"strings"

	"Unwarp/pkg/geometry"
	"Unwarp/pkg/perspective"
)

// parseCorners reads "x,y x,y x,y x,y". Semicolons also separate points.
func parseCorners(raw string) ([]geometry.Point, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ';'
	})
	if len(fields) != 4 {
		return nil, fmt.Errorf("expected 4 corners, got %d", len(fields))
	}

	points := make([]geometry.Point, 0, 4)
	for _, f := range fields {
		xy := strings.Split(f, ",")
		if len(xy) != 2 {
			return nil, fmt.Errorf("corner %q is not x,y", f)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xy[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("corner %q: %w", f, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(xy[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("corner %q: %w", f, err)
		}
		points = append(points, geometry.Pt(x, y))
	}
	return points, nil
}

// outputSize returns the requested size, or one fitted to the corners when
// either side is left at zero.
func outputSize(points []geometry.Point, width, height int) (int, int) {
	if width > 0 && height > 0 {
		return width, height
	}
	return perspective.FitSize([4]geometry.Point(points))
}
