package aqi

import (
	"fmt"
	"math"
	"sort"
)

// Pollutant identifies one of the six pollutants an index is computed for.
type Pollutant string

const (
	PM25 Pollutant = "PM25"
	PM10 Pollutant = "PM10"
	O3   Pollutant = "O3"
	CO   Pollutant = "CO"
	SO2  Pollutant = "SO2"
	NO2  Pollutant = "NO2"
)

// Pollutants is the fixed enumeration order. Dominant pollutant ties are
// broken by position in this list.
var Pollutants = []Pollutant{PM25, PM10, O3, CO, SO2, NO2}

// Breakpoint maps the concentration range [CpLow, CpHigh] onto the index
// range [ILow, IHigh].
type Breakpoint struct {
	CpLow  float64
	CpHigh float64
	ILow   int
	IHigh  int
}

// Table holds the ordered breakpoints for each pollutant.
type Table map[Pollutant][]Breakpoint

// DefaultTable is the breakpoint data the service ships with.
//
// The ranges are not contiguous everywhere: O3 has no band between 0.070 and
// 0.125, and CO, SO2 and NO2 stop at index 300. Concentrations that fall in
// those holes are out of range. Use Gaps to list them.
var DefaultTable = Table{
	PM25: {
		{0.0, 9.0, 0, 50},
		{9.1, 35.4, 51, 100},
		{35.5, 55.4, 101, 150},
		{55.5, 125.4, 151, 200},
		{125.5, 225.4, 201, 300},
		{225.5, 325.4, 301, 500},
	},
	PM10: {
		{0, 54, 0, 50},
		{55, 154, 51, 100},
		{155, 254, 101, 150},
		{255, 354, 151, 200},
		{355, 424, 201, 300},
		{425, 604, 301, 500},
	},
	O3: {
		{0.000, 0.054, 0, 50},
		{0.055, 0.070, 51, 100},
		{0.125, 0.164, 101, 150},
		{0.165, 0.204, 151, 200},
		{0.205, 0.404, 201, 300},
		{0.405, 0.604, 301, 500},
	},
	CO: {
		{0.0, 4.4, 0, 50},
		{4.5, 9.4, 51, 100},
		{9.5, 12.4, 101, 150},
		{12.5, 15.4, 151, 200},
		{15.5, 30.4, 201, 300},
	},
	SO2: {
		{0, 35, 0, 50},
		{36, 75, 51, 100},
		{76, 185, 101, 150},
		{186, 304, 151, 200},
		{305, 604, 201, 300},
	},
	NO2: {
		{0, 53, 0, 50},
		{54, 100, 51, 100},
		{101, 360, 101, 150},
		{361, 649, 151, 200},
		{650, 1249, 201, 300},
	},
}

// Gap is a concentration interval between two consecutive bands that no
// band covers.
type Gap struct {
	Pollutant Pollutant
	After     float64
	Before    float64
}

func (g Gap) String() string {
	return fmt.Sprintf("%s: (%g, %g)", g.Pollutant, g.After, g.Before)
}

// Gaps lists holes between consecutive bands, in enumeration order. Bands
// one reporting step apart (9.0 and 9.1, or 54 and 55) are adjacent, not a
// gap.
func (t Table) Gaps() []Gap {
	var gaps []Gap
	for _, p := range t.pollutants() {
		bands := t[p]
		for i := 1; i < len(bands); i++ {
			prev, cur := bands[i-1], bands[i]
			step := math.Pow10(-max(decimals(prev.CpHigh), decimals(cur.CpLow)))
			if cur.CpLow-prev.CpHigh > step+1e-9 {
				gaps = append(gaps, Gap{Pollutant: p, After: prev.CpHigh, Before: cur.CpLow})
			}
		}
	}
	return gaps
}

// Truncated lists pollutants whose highest band stops below MaxIndex.
func (t Table) Truncated() []Pollutant {
	var out []Pollutant
	for _, p := range t.pollutants() {
		bands := t[p]
		if len(bands) > 0 && bands[len(bands)-1].IHigh < MaxIndex {
			out = append(out, p)
		}
	}
	return out
}

// decimals returns the number of significant decimal places in x, up to 6.
func decimals(x float64) int {
	for d := 0; d < 6; d++ {
		scaled := x * math.Pow10(d)
		if math.Abs(scaled-math.Round(scaled)) < 1e-6 {
			return d
		}
	}
	return 6
}

// Validate checks that every band is well formed and that bands ascend
// without overlapping.
func (t Table) Validate() error {
	for _, p := range t.pollutants() {
		bands := t[p]
		if len(bands) == 0 {
			return fmt.Errorf("pollutant %s has no breakpoints", p)
		}
		for i, b := range bands {
			if b.CpHigh <= b.CpLow {
				return fmt.Errorf("pollutant %s band %d: CpHigh %g not above CpLow %g", p, i, b.CpHigh, b.CpLow)
			}
			if b.IHigh < b.ILow {
				return fmt.Errorf("pollutant %s band %d: IHigh %d below ILow %d", p, i, b.IHigh, b.ILow)
			}
			if i > 0 && b.CpLow <= bands[i-1].CpHigh {
				return fmt.Errorf("pollutant %s band %d overlaps band %d", p, i, i-1)
			}
		}
	}
	return nil
}

// pollutants returns the table's keys with the known pollutants first, in
// enumeration order, and any others sorted by name.
func (t Table) pollutants() []Pollutant {
	out := make([]Pollutant, 0, len(t))
	known := make(map[Pollutant]bool, len(Pollutants))
	for _, p := range Pollutants {
		known[p] = true
		if _, ok := t[p]; ok {
			out = append(out, p)
		}
	}
	var extra []Pollutant
	for p := range t {
		if !known[p] {
			extra = append(extra, p)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
