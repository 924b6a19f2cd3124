package aqi

import (
	"math"
	"testing"
)

func TestCalculateIndex_AdjacentBands(t *testing.T) {
	tests := []struct {
		name      string
		pollutant Pollutant
		conc      float64
		want      int
	}{
		{"pm25 top of good", PM25, 9.0, 50},
		{"pm25 bottom of moderate", PM25, 9.1, 51},
		{"pm25 zero", PM25, 0, 0},
		{"pm25 mid moderate", PM25, 15, 62},
		{"pm25 top of scale", PM25, 325.4, 500},
		{"pm10 top of good", PM10, 54, 50},
		{"pm10 bottom of moderate", PM10, 55, 51},
		{"pm10 top of scale", PM10, 604, 500},
		{"o3 moderate", O3, 0.070, 100},
		{"o3 after gap", O3, 0.125, 101},
		{"co unhealthy", CO, 12.5, 151},
		{"so2 very unhealthy top", SO2, 604, 300},
		{"no2 moderate bottom", NO2, 54, 51},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateIndex(tt.conc, tt.pollutant); got != tt.want {
				t.Errorf("CalculateIndex(%v, %s) = %d, want %d", tt.conc, tt.pollutant, got, tt.want)
			}
		})
	}
}

func TestCalculateIndex_OutOfRange(t *testing.T) {
	tests := []struct {
		name      string
		pollutant Pollutant
		conc      float64
	}{
		{"negative pm25", PM25, -0.1},
		{"above pm25 scale", PM25, 325.5},
		{"above pm10 scale", PM10, 605},
		{"o3 gap", O3, 0.08},
		{"o3 gap upper edge", O3, 0.124},
		{"pm25 between bands", PM25, 9.05},
		{"co missing top band", CO, 31},
		{"so2 missing top band", SO2, 700},
		{"no2 missing top band", NO2, 1300},
		{"unknown pollutant", Pollutant("NH3"), 1},
		{"nan", PM25, math.NaN()},
		{"infinity", PM10, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateIndex(tt.conc, tt.pollutant); got != OutOfRange {
				t.Errorf("CalculateIndex(%v, %s) = %d, want OutOfRange", tt.conc, tt.pollutant, got)
			}
		})
	}
}

func TestCalculateIndex_Pure(t *testing.T) {
	for _, p := range Pollutants {
		first := CalculateIndex(12.3, p)
		for i := 0; i < 100; i++ {
			if got := CalculateIndex(12.3, p); got != first {
				t.Fatalf("call %d for %s returned %d, first call returned %d", i, p, got, first)
			}
		}
	}
}

func TestTableIndex_SharedBoundaryFirstMatchWins(t *testing.T) {
	table := Table{
		PM25: {
			{0, 10, 0, 50},
			{10, 20, 51, 100},
		},
	}

	if got := table.Index(10, PM25); got != 50 {
		t.Errorf("Expected first band to win at shared boundary, got %d", got)
	}
	if got := table.Index(10.5, PM25); got != 53 {
		t.Errorf("Expected 53 inside second band, got %d", got)
	}
}

func TestTableIndex_RoundsHalfUp(t *testing.T) {
	table := Table{CO: {{0, 10, 0, 5}}}

	// 0.5 * 1 = 0.5 -> 1, 0.5 * 3 = 1.5 -> 2
	if got := table.Index(1, CO); got != 1 {
		t.Errorf("Expected 1, got %d", got)
	}
	if got := table.Index(3, CO); got != 2 {
		t.Errorf("Expected 2, got %d", got)
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name         string
		subs         SubIndices
		wantAQI      int
		wantDominant Pollutant
	}{
		{
			name:         "tie resolved by enumeration order",
			subs:         SubIndices{PM25: 51, PM10: 200, O3: 200, CO: 10, SO2: 5, NO2: 5},
			wantAQI:      200,
			wantDominant: PM10,
		},
		{
			name:         "single max",
			subs:         SubIndices{PM25: 51, PM10: 20, O3: 3, CO: 110, SO2: 5, NO2: 5},
			wantAQI:      110,
			wantDominant: CO,
		},
		{
			name:         "all out of range",
			subs:         SubIndices{PM25: -1, PM10: -1, O3: -1, CO: -1, SO2: -1, NO2: -1},
			wantAQI:      OutOfRange,
			wantDominant: PM25,
		},
		{
			name:         "out of range loses to zero",
			subs:         SubIndices{PM25: -1, PM10: 0, O3: -1, CO: 0, SO2: 0, NO2: 0},
			wantAQI:      0,
			wantDominant: PM10,
		},
		{
			name:         "missing entries count as out of range",
			subs:         SubIndices{NO2: 7},
			wantAQI:      7,
			wantDominant: NO2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotAQI, gotDominant := Combine(tt.subs)
			if gotAQI != tt.wantAQI || gotDominant != tt.wantDominant {
				t.Errorf("Combine() = (%d, %s), want (%d, %s)", gotAQI, gotDominant, tt.wantAQI, tt.wantDominant)
			}
		})
	}
}

func TestCategory(t *testing.T) {
	cases := map[int]string{
		-1:  "Indeterminate",
		0:   "Good",
		50:  "Good",
		51:  "Moderate",
		150: "Unhealthy for Sensitive Groups",
		200: "Unhealthy",
		300: "Very Unhealthy",
		301: "Hazardous",
	}
	for index, want := range cases {
		if got := Category(index); got != want {
			t.Errorf("Category(%d) = %q, want %q", index, got, want)
		}
	}
}
