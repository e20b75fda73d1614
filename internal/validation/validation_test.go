package validation

import (
	"errors"
	"reflect"
	"testing"
)

func TestValidateParsesCoordinates(t *testing.T) {
	coords, err := Validate(map[string]string{"x": "12.5", "y": "7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coords.X != 12.5 || coords.Y != 7.0 {
		t.Fatalf("unexpected coordinates: %+v", coords)
	}
	if coords.Age != nil || coords.Gender != nil || coords.Tags != nil {
		t.Fatalf("expected optional fields to be absent: %+v", coords)
	}
}

func TestValidateRejectsBadCoordinates(t *testing.T) {
	cases := []map[string]string{
		{},
		{"x": "1"},
		{"y": "1"},
		{"x": "", "y": "1"},
		{"x": "abc", "y": "1"},
		{"x": "1", "y": "NaN"},
		{"x": "Inf", "y": "1"},
		{"x": "Infinity", "y": "1"},
		{"x": "1e400", "y": "1"},
		{"x": ".", "y": "1"},
		{"x": "-", "y": "1"},
		{"x": "px100", "y": "1"},
	}
	for _, fields := range cases {
		if _, err := Validate(fields); !errors.Is(err, ErrInvalidCoordinates) {
			t.Fatalf("fields %v: expected ErrInvalidCoordinates, got %v", fields, err)
		}
	}
}

func TestValidateOptionalFields(t *testing.T) {
	coords, err := Validate(map[string]string{
		"x":      "1",
		"y":      "2",
		"age":    "31.9",
		"gender": "female",
		"tags":   " smile, ,glasses ,",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coords.Age == nil || *coords.Age != 31 {
		t.Fatalf("expected age 31, got %v", coords.Age)
	}
	if coords.Gender == nil || *coords.Gender != "female" {
		t.Fatalf("unexpected gender: %v", coords.Gender)
	}
	want := []string{"smile", "", "glasses", ""}
	if !reflect.DeepEqual(coords.Tags, want) {
		t.Fatalf("tags = %q, want %q", coords.Tags, want)
	}
}

func TestValidateDropsUnparseableAge(t *testing.T) {
	coords, err := Validate(map[string]string{"x": "1", "y": "2", "age": "unknown"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coords.Age != nil {
		t.Fatalf("expected age to be omitted, got %d", *coords.Age)
	}
}

func TestValidateReadsLeadingNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"12.5abc", 12.5},
		{"100px", 100},
		{"0x1p4", 0},
		{"1_000", 1},
		{"  3", 3},
		{".5", 0.5},
		{"5.", 5},
		{"+7", 7},
		{"-2.5e2m", -250},
		{"1e", 1},
		{"1e+", 1},
		{"4E-1,", 0.4},
	}
	for _, tc := range cases {
		coords, err := Validate(map[string]string{"x": tc.in, "y": "7"})
		if err != nil {
			t.Fatalf("x=%q: unexpected error: %v", tc.in, err)
		}
		if coords.X != tc.want {
			t.Fatalf("x=%q: got %v, want %v", tc.in, coords.X, tc.want)
		}
	}
}

func TestParseLeadingInt(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"42", 42, true},
		{" -7 ", -7, true},
		{"+3", 3, true},
		{"25.9", 25, true},
		{"10px", 10, true},
		{"", 0, false},
		{"-", 0, false},
		{"x1", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseLeadingInt(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseLeadingInt(%q) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseBoundingBox(t *testing.T) {
	box, err := ParseBoundingBox(map[string]string{"startX": "0", "endX": "50.8", "startY": "-5", "endY": "50"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := BoundingBox{StartX: 0, EndX: 50, StartY: -5, EndY: 50}
	if box != want {
		t.Fatalf("box = %+v, want %+v", box, want)
	}
	if !box.Contains(50, 50) || !box.Contains(0, -5) || box.Contains(50.5, 0) {
		t.Fatal("Contains must be inclusive on integer edges only")
	}
}

func TestParseBoundingBoxErrors(t *testing.T) {
	_, err := ParseBoundingBox(map[string]string{"startX": "0", "endX": "50", "startY": "0"})
	if !errors.Is(err, ErrMissingCoordinates) {
		t.Fatalf("expected ErrMissingCoordinates, got %v", err)
	}
	_, err = ParseBoundingBox(map[string]string{"startX": "0", "endX": "50", "startY": "0", "endY": "top"})
	if !errors.Is(err, ErrInvalidBoundingBox) {
		t.Fatalf("expected ErrInvalidBoundingBox, got %v", err)
	}
}
