// Package validation turns raw form and query values into typed coordinates.
package validation

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidCoordinates is returned when x or y is missing or not a finite number.
var ErrInvalidCoordinates = errors.New("missing or invalid x/y coordinates")

// Coordinates is a validated submission position with optional descriptors.
type Coordinates struct {
	X      float64
	Y      float64
	Age    *int
	Gender *string
	Tags   []string
}

// Validate extracts coordinates from decoded form fields. Only x and y can fail;
// an age without leading digits is dropped rather than rejected.
func Validate(fields map[string]string) (*Coordinates, error) {
	x, err := parseFinite(fields["x"])
	if err != nil {
		return nil, err
	}
	y, err := parseFinite(fields["y"])
	if err != nil {
		return nil, err
	}

	coords := &Coordinates{X: x, Y: y}

	if raw := fields["age"]; raw != "" {
		if age, ok := ParseLeadingInt(raw); ok {
			coords.Age = &age
		}
	}
	if gender := fields["gender"]; gender != "" {
		coords.Gender = &gender
	}
	if raw := fields["tags"]; raw != "" {
		parts := strings.Split(raw, ",")
		tags := make([]string, len(parts))
		for i, p := range parts {
			tags[i] = strings.TrimSpace(p)
		}
		coords.Tags = tags
	}

	return coords, nil
}

func parseFinite(raw string) (float64, error) {
	v, ok := ParseLeadingFloat(raw)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidCoordinates
	}
	return v, nil
}

// ParseLeadingFloat reads the longest decimal number at the start of raw: an
// optional sign, digits with an optional fraction, then an optional exponent.
// Trailing text is ignored, so "12.5abc" yields 12.5 and "0x10" yields 0.
func ParseLeadingFloat(raw string) (float64, bool) {
	s := strings.TrimLeftFunc(raw, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}

	intStart := end
	end = skipDigits(s, end)
	digits := end - intStart

	if end < len(s) && s[end] == '.' {
		fracEnd := skipDigits(s, end+1)
		if digits > 0 || fracEnd > end+1 {
			digits += fracEnd - (end + 1)
			end = fracEnd
		}
	}
	if digits == 0 {
		return 0, false
	}

	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		expStart := end + 1
		if expStart < len(s) && (s[expStart] == '+' || s[expStart] == '-') {
			expStart++
		}
		if expEnd := skipDigits(s, expStart); expEnd > expStart {
			end = expEnd
		}
	}

	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return v, true
}

func skipDigits(s string, i int) int {
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}

// ParseLeadingInt reads an optional sign and the leading run of decimal digits,
// ignoring anything after them, so "25.7" and "25y" both yield 25.
func ParseLeadingInt(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, false
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return v, true
}
