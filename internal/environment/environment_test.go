package environment

import (
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestHydrationDeltaClamped(t *testing.T) {
	cases := []struct {
		humidity float64
		want     float64
	}{
		{50, 0},
		{70, 1},
		{30, -1},
		{100, 2.5},
		{150, 3},
		{-50, -3},
	}
	for _, c := range cases {
		if got := HydrationDelta(c.humidity); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("HydrationDelta(%v) = %v, want %v", c.humidity, got, c.want)
		}
	}
}

func TestYeastCorrectionAltitude(t *testing.T) {
	if got := YeastCorrection(500); got != 0 {
		t.Fatalf("no correction expected at threshold, got %v", got)
	}
	if got := YeastCorrection(1500); math.Abs(got+5) > 1e-9 {
		t.Fatalf("expected -5 at 1500m, got %v", got)
	}
	if got := YeastCorrection(9000); got != -20 {
		t.Fatalf("expected floor -20, got %v", got)
	}
}

func TestFermentationCorrection(t *testing.T) {
	if got := FermentationCorrection(0, 22); got != 0 {
		t.Fatalf("baseline should be neutral, got %v", got)
	}
	if got := FermentationCorrection(1500, 22); math.Abs(got+8) > 1e-9 {
		t.Fatalf("expected -8, got %v", got)
	}
	if got := FermentationCorrection(0, 40); got != -30 {
		t.Fatalf("expected lower clamp -30, got %v", got)
	}
	if got := FermentationCorrection(0, 10); got != 50 {
		t.Fatalf("expected upper clamp 50, got %v", got)
	}
}

func TestCorrectReclampsHydration(t *testing.T) {
	c := Correct(Input{HydrationPct: 94, FermentationHours: 10, RoomTempC: 22, HumidityPct: ptr(100)})
	if c.HydrationPct != MaxHydrationPct {
		t.Fatalf("expected hydration re-clamped to %v, got %v", MaxHydrationPct, c.HydrationPct)
	}
	if c.YeastFactor() != 1 {
		t.Fatalf("expected neutral yeast factor, got %v", c.YeastFactor())
	}
	if c.CorrectedFermentationHours != 10 {
		t.Fatalf("expected 10h, got %v", c.CorrectedFermentationHours)
	}
	if len(c.Recommendations) == 0 {
		t.Fatalf("expected humidity recommendation")
	}
}

func TestCorrectPrefersExplicitHumidityAndWeatherTemp(t *testing.T) {
	c := Correct(Input{
		HydrationPct:       65,
		FermentationHours:  8,
		RoomTempC:          22,
		HumidityPct:        ptr(60),
		WeatherHumidityPct: ptr(90),
		WeatherTempC:       ptr(24),
		AltitudeMeters:     ptr(1000),
	})
	if math.Abs(c.HydrationPct-65.5) > 1e-9 {
		t.Fatalf("expected 65.5, got %v", c.HydrationPct)
	}
	if math.Abs(c.FermentationCorrectionPct-(-4-10)) > 1e-9 {
		t.Fatalf("expected -14, got %v", c.FermentationCorrectionPct)
	}
	if math.Abs(c.PressureHPa-Pressure(1000)) > 0.06 {
		t.Fatalf("pressure mismatch: %v", c.PressureHPa)
	}
}
