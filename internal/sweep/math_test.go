package sweep

import (
	"math"
	"reflect"
	"testing"
)

func TestParseCSVFloat64s(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  []float64
		expectErr bool
	}{
		{"empty_string", "", nil, false},
		{"single_value", "1.5", []float64{1.5}, false},
		{"multiple_values", "7.3,7.5,7.7", []float64{7.3, 7.5, 7.7}, false},
		{"with_spaces", " 1.0 , 2.5 , 3.0 ", []float64{1.0, 2.5, 3.0}, false},
		{"scientific_notation", "1e-3,2e2", []float64{0.001, 200}, false},
		{"invalid_value", "1.0,abc,3.0", nil, true},
		{"empty_parts", "1.0,,3.0", []float64{1.0, 3.0}, false},
		{"trailing_comma", "1.0,2.0,", []float64{1.0, 2.0}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseCSVFloat64s(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Errorf("Expected error for input %q, got nil", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tc.expected) {
				t.Errorf("ParseCSVFloat64s(%q) = %v, want %v", tc.input, result, tc.expected)
			}
		})
	}
}

func TestMeanStddev(t *testing.T) {
	testCases := []struct {
		name       string
		input      []float64
		wantMean   float64
		wantStddev float64
	}{
		{"empty", nil, 0, 0},
		{"single", []float64{146.25}, 146.25, 0},
		{"identical", []float64{3, 3, 3}, 3, 0},
		{"pair", []float64{1, 3}, 2, math.Sqrt2},
		{"sample_stddev", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 5, math.Sqrt(32.0 / 7.0)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mean, sd := MeanStddev(tc.input)
			if math.Abs(mean-tc.wantMean) > 1e-9 {
				t.Errorf("mean = %v, want %v", mean, tc.wantMean)
			}
			if math.Abs(sd-tc.wantStddev) > 1e-9 {
				t.Errorf("stddev = %v, want %v", sd, tc.wantStddev)
			}
		})
	}
}
