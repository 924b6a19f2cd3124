package aqi

import "math"

const (
	// OutOfRange is returned for a concentration no band covers. Consumers
	// must read it as "indeterminate", never as a low reading.
	OutOfRange = -1

	// MaxIndex is the top of the index scale.
	MaxIndex = 500
)

// Index maps a concentration to the pollutant's sub-index using the first
// band, in table order, with CpLow <= c <= CpHigh. It returns OutOfRange
// when no band matches, including for unknown pollutants and NaN.
func (t Table) Index(concentration float64, p Pollutant) int {
	for _, b := range t[p] {
		if concentration >= b.CpLow && concentration <= b.CpHigh {
			return interpolate(b, concentration)
		}
	}
	return OutOfRange
}

func interpolate(b Breakpoint, c float64) int {
	slope := float64(b.IHigh-b.ILow) / (b.CpHigh - b.CpLow)
	return int(math.Round(slope*(c-b.CpLow) + float64(b.ILow)))
}

// CalculateIndex computes a sub-index against DefaultTable.
func CalculateIndex(concentration float64, p Pollutant) int {
	return DefaultTable.Index(concentration, p)
}

// SubIndices holds one sub-index per pollutant.
type SubIndices map[Pollutant]int

// Combine returns the overall index, the maximum of the sub-indices, and
// the dominant pollutant: the first pollutant in Pollutants whose sub-index
// equals that maximum. A pollutant missing from s counts as OutOfRange.
// When every sub-index is OutOfRange the result is OutOfRange with PM25
// dominant.
func Combine(s SubIndices) (int, Pollutant) {
	overall := math.MinInt
	dominant := Pollutants[0]
	for _, p := range Pollutants {
		v, ok := s[p]
		if !ok {
			v = OutOfRange
		}
		// strict comparison keeps the earliest pollutant on ties
		if v > overall {
			overall = v
			dominant = p
		}
	}
	return overall, dominant
}

// Category returns the health category label for an index.
func Category(index int) string {
	switch {
	case index < 0:
		return "Indeterminate"
	case index <= 50:
		return "Good"
	case index <= 100:
		return "Moderate"
	case index <= 150:
		return "Unhealthy for Sensitive Groups"
	case index <= 200:
		return "Unhealthy"
	case index <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}
