package domain

import "fmt"

// Weight units. Measurements are stored in kilograms.
const (
	UnitKG = "kg"
	UnitLB = "lb"
)

const kgToLb = 2.2046226218

// ParseUnit validates a unit name; the empty string means kilograms.
func ParseUnit(u string) (string, error) {
	switch u {
	case "", UnitKG:
		return UnitKG, nil
	case UnitLB:
		return UnitLB, nil
	}
	return "", Invalid("unit", fmt.Sprintf("unit must be %q or %q", UnitKG, UnitLB))
}

// ConvertWeight converts a weight value between "kg" and "lb".
// Returns v unchanged if from == to or if the units are unrecognised.
func ConvertWeight(v float64, from, to string) float64 {
	switch {
	case from == to:
		return v
	case from == UnitKG && to == UnitLB:
		return v * kgToLb
	case from == UnitLB && to == UnitKG:
		return v / kgToLb
	}
	return v
}

// InUnit returns a copy of ms with weights converted from kilograms to unit
// and rounded to two decimals.
func InUnit(ms []Measurement, unit string) []Measurement {
	out := make([]Measurement, len(ms))
	copy(out, ms)
	if unit == UnitKG {
		return out
	}
	for i := range out {
		out[i].Weight = round(ConvertWeight(out[i].Weight, UnitKG, unit), 2)
	}
	return out
}
