// Package environment adjusts hydration, yeast and fermentation time for
// altitude, air humidity and ambient temperature.
package environment

import (
	"fmt"
	"math"

	"doughline/internal/bakers"
)

const (
	BaseHumidityPct      = 50.0
	BaselineTempC        = 22.0
	BasePressureHPa      = 1013.25
	ScaleHeightMeters    = 8500.0
	AltitudeThresholdM   = 500.0
	humidityFactor       = 0.05
	maxHydrationDelta    = 3.0
	yeastPer1000m        = 5.0
	maxYeastReduction    = -20.0
	fermentationPer1000m = 8.0
	tempFactor           = 5.0
	minFermentationPct   = -30.0
	maxFermentationPct   = 50.0
	highHumidityPct      = 70.0
	lowHumidityPct       = 30.0
	hotRoomC             = 28.0
	coldRoomC            = 18.0

	MinHydrationPct = 45.0
	MaxHydrationPct = 95.0
)

type Input struct {
	HydrationPct       float64
	FermentationHours  int
	RoomTempC          float64
	AltitudeMeters     *float64
	HumidityPct        *float64
	WeatherTempC       *float64
	WeatherHumidityPct *float64
}

type Correction struct {
	HydrationPct               float64
	HydrationDeltaPct          float64
	YeastCorrectionPct         float64
	FermentationCorrectionPct  float64
	CorrectedFermentationHours float64
	PressureHPa                float64
	Recommendations            []string
}

// YeastFactor is the multiplier the altitude correction applies to a yeast percentage.
func (c Correction) YeastFactor() float64 {
	return 1 + c.YeastCorrectionPct/100
}

// Correct computes every environmental adjustment for in. It never fails:
// missing readings fall back to the neutral baseline.
func Correct(in Input) Correction {
	humidity := BaseHumidityPct
	if in.HumidityPct != nil {
		humidity = *in.HumidityPct
	} else if in.WeatherHumidityPct != nil {
		humidity = *in.WeatherHumidityPct
	}
	altitude := 0.0
	if in.AltitudeMeters != nil {
		altitude = *in.AltitudeMeters
	}
	ambient := in.RoomTempC
	if in.WeatherTempC != nil {
		ambient = *in.WeatherTempC
	}

	delta := HydrationDelta(humidity)
	fermPct := FermentationCorrection(altitude, ambient)
	c := Correction{
		HydrationDeltaPct:          delta,
		HydrationPct:               bakers.Clamp(in.HydrationPct+delta, MinHydrationPct, MaxHydrationPct),
		YeastCorrectionPct:         YeastCorrection(altitude),
		FermentationCorrectionPct:  fermPct,
		CorrectedFermentationHours: bakers.Round(float64(in.FermentationHours)*(1+fermPct/100), 1),
		PressureHPa:                bakers.Round(Pressure(altitude), 1),
	}
	c.Recommendations = recommendations(humidity, altitude, ambient)
	return c
}

// HydrationDelta is the hydration adjustment for a relative air humidity.
func HydrationDelta(humidityPct float64) float64 {
	return bakers.Clamp((humidityPct-BaseHumidityPct)*humidityFactor, -maxHydrationDelta, maxHydrationDelta)
}

// YeastCorrection returns the percentage change applied to yeast at altitude.
// Zero at or below the threshold, never below -20.
func YeastCorrection(altitudeM float64) float64 {
	if altitudeM <= AltitudeThresholdM {
		return 0
	}
	corr := -((altitudeM - AltitudeThresholdM) / 1000) * yeastPer1000m
	return math.Max(maxYeastReduction, corr)
}

// FermentationCorrection returns the percentage change of nominal fermentation time.
func FermentationCorrection(altitudeM, ambientC float64) float64 {
	corr := 0.0
	if altitudeM > AltitudeThresholdM {
		corr -= ((altitudeM - AltitudeThresholdM) / 1000) * fermentationPer1000m
	}
	corr -= (ambientC - BaselineTempC) * tempFactor
	return bakers.Clamp(corr, minFermentationPct, maxFermentationPct)
}

// Pressure estimates barometric pressure in hPa from altitude.
func Pressure(altitudeM float64) float64 {
	return BasePressureHPa * math.Exp(-altitudeM/ScaleHeightMeters)
}

func recommendations(humidity, altitude, ambient float64) []string {
	var out []string
	switch {
	case humidity > highHumidityPct:
		out = append(out, "high air humidity: flour may be damp, hold back a little water or mix longer")
	case humidity < lowHumidityPct:
		out = append(out, "low air humidity: flour is dry and may take a little more water")
	}
	switch {
	case altitude > AltitudeThresholdM*2:
		out = append(out, fmt.Sprintf("high altitude (%.0fm): fermentation runs faster, yeast and time reduced", altitude))
	case altitude > AltitudeThresholdM:
		out = append(out, fmt.Sprintf("moderate altitude (%.0fm): small yeast and time correction", altitude))
	}
	switch {
	case ambient > hotRoomC:
		out = append(out, fmt.Sprintf("warm room (%.1f°C): fermentation will be quick, consider the fridge or less yeast", ambient))
	case ambient < coldRoomC:
		out = append(out, fmt.Sprintf("cool room (%.1f°C): fermentation will be slow, allow more time or a warmer spot", ambient))
	}
	return out
}
