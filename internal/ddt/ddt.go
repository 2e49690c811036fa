// Package ddt solves the water temperature needed to reach a desired dough temperature.
package ddt

import (
	"fmt"
	"strings"

	"doughline/internal/bakers"
	"doughline/internal/domain"
)

const (
	MinWaterTempC = 0.0
	MaxWaterTempC = 35.0
	coldWaterC    = 10.0
	warmRoomC     = 28.0
)

type Input struct {
	TargetDoughTempC float64
	RoomTempC        float64
	FlourTempC       float64
	PrefermentTempC  *float64
	Mixer            domain.MixerType
}

// Calculate returns the water temperature for in. With a preferment four
// temperature terms are used, otherwise three.
func Calculate(in Input) (domain.DDTResult, error) {
	mixer, ok := domain.LookupMixer(in.Mixer)
	if !ok {
		return domain.DDTResult{}, domain.ValidationError{Field: "mixer_type", Value: in.Mixer, Msg: "unknown mixer"}
	}
	friction := mixer.FrictionFactor * float64(mixer.TypicalMixingMinutes)
	n := 3.0
	known := in.RoomTempC + in.FlourTempC + friction
	terms := []string{
		fmt.Sprintf("room %.1f", in.RoomTempC),
		fmt.Sprintf("flour %.1f", in.FlourTempC),
		fmt.Sprintf("friction %.1f", friction),
	}
	if in.PrefermentTempC != nil {
		n = 4
		known += *in.PrefermentTempC
		terms = append(terms, fmt.Sprintf("preferment %.1f", *in.PrefermentTempC))
	}
	water := in.TargetDoughTempC*n - known

	res := domain.DDTResult{
		TargetDoughTempC: in.TargetDoughTempC,
		TargetWaterTempC: bakers.Round(water, 1),
		FrictionFactor:   mixer.FrictionFactor,
		FrictionC:        bakers.Round(friction, 1),
		FormulaTrace: fmt.Sprintf("water = %.1f x %.0f - (%s) = %.1f°C",
			in.TargetDoughTempC, n, strings.Join(terms, " + "), water),
	}
	switch {
	case water < MinWaterTempC:
		res.Warnings = append(res.Warnings, fmt.Sprintf("required water %.1f°C is below freezing: use ice or chill the flour", water))
	case water > MaxWaterTempC:
		res.Warnings = append(res.Warnings, fmt.Sprintf("required water %.1f°C is above %.0f°C: warm the flour or the room instead", water, MaxWaterTempC))
	default:
		if water < coldWaterC {
			res.Recommendations = append(res.Recommendations, "use chilled water from the fridge")
		}
		if in.RoomTempC > warmRoomC {
			res.Recommendations = append(res.Recommendations, "warm room: keep ingredients cool and shorten mixing")
		}
	}
	return res, nil
}

// TargetFor returns the desired dough temperature of a style.
func TargetFor(style domain.Style) float64 {
	if spec, ok := domain.LookupStyle(style); ok && spec.TargetDoughTempC > 0 {
		return spec.TargetDoughTempC
	}
	return domain.DefaultTargetDoughTempC
}
