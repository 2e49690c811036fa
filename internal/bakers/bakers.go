// Package bakers holds baker's-percentage arithmetic and mass conversions.
// Every percentage is relative to flour mass, with flour pinned at 100.
package bakers

import "math"

const (
	GramsPerOunce = 28.349523125
	GramsPerPound = 453.59237
)

// Mass returns the grams of an ingredient at pct of flourGrams.
func Mass(flourGrams, pct float64) float64 {
	return flourGrams * pct / 100
}

// Percent returns mass as a percentage of flourGrams.
func Percent(mass, flourGrams float64) float64 {
	if flourGrams == 0 {
		return 0
	}
	return mass / flourGrams * 100
}

// FlourForTotal solves the flour mass of a dough weighing total grams whose
// non-flour ingredients sum to the given baker's percentages.
func FlourForTotal(total float64, pcts ...float64) float64 {
	sum := 100.0
	for _, p := range pcts {
		sum += p
	}
	return total * 100 / sum
}

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, places int) float64 {
	f := math.Pow(10, float64(places))
	return math.Round(v*f) / f
}

// Grams rounds to the 0.1 g display precision.
func Grams(v float64) float64 {
	return Round(v, 1)
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func ToOunces(grams float64) float64 { return grams / GramsPerOunce }

func ToPounds(grams float64) float64 { return grams / GramsPerPound }

func FromOunces(oz float64) float64 { return oz * GramsPerOunce }

func FromPounds(lb float64) float64 { return lb * GramsPerPound }
