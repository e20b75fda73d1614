package validation

import "errors"

var (
	// ErrMissingCoordinates is returned when any bounding-box parameter is absent or empty.
	ErrMissingCoordinates = errors.New("missing coordinates")
	// ErrInvalidBoundingBox is returned when a parameter has no leading integer.
	ErrInvalidBoundingBox = errors.New("invalid coordinates")
)

// BoundingBox is an inclusive integer range over stored x and y.
type BoundingBox struct {
	StartX int
	EndX   int
	StartY int
	EndY   int
}

// ParseBoundingBox reads startX, endX, startY and endY. Fractional values are
// truncated towards their integer prefix.
func ParseBoundingBox(params map[string]string) (BoundingBox, error) {
	keys := [4]string{"startX", "endX", "startY", "endY"}
	for _, key := range keys {
		if params[key] == "" {
			return BoundingBox{}, ErrMissingCoordinates
		}
	}

	var values [4]int
	for i, key := range keys {
		v, ok := ParseLeadingInt(params[key])
		if !ok {
			return BoundingBox{}, ErrInvalidBoundingBox
		}
		values[i] = v
	}

	return BoundingBox{StartX: values[0], EndX: values[1], StartY: values[2], EndY: values[3]}, nil
}

// Contains reports whether (x, y) falls inside the box, edges included.
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= float64(b.StartX) && x <= float64(b.EndX) &&
		y >= float64(b.StartY) && y <= float64(b.EndY)
}
