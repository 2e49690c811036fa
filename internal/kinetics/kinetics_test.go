package kinetics

import (
	"errors"
	"math"
	"testing"

	"doughline/internal/domain"
)

var allMethods = []domain.Method{
	domain.MethodRoomTemperature,
	domain.MethodCold,
	domain.MethodMixed,
	domain.MethodSameDay,
}

func TestRoomTemperatureScenario(t *testing.T) {
	r := DefaultRegistry()
	got, err := r.YeastPercentage(8, 24, 4, domain.MethodRoomTemperature)
	if err != nil {
		t.Fatalf("yeast: %v", err)
	}
	want := 0.5 * (6.0 / 8.0) / math.Pow(2, (24.0-27.0)/10)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestColdLessThanRoomScenario(t *testing.T) {
	r := DefaultRegistry()
	room, _ := r.YeastPercentage(8, 24, 4, domain.MethodRoomTemperature)
	cold, err := r.YeastPercentage(24, 24, 4, domain.MethodCold)
	if err != nil {
		t.Fatalf("yeast: %v", err)
	}
	if !(cold < room) {
		t.Fatalf("cold %v should be below room %v", cold, room)
	}
}

func TestYeastNonIncreasingInHours(t *testing.T) {
	r := DefaultRegistry()
	temps := []struct{ room, fridge float64 }{
		{10, 0}, {18, 2}, {22, 4}, {27, 6}, {32, 8}, {40, 10},
	}
	for _, m := range allMethods {
		for _, tc := range temps {
			prev := math.Inf(1)
			for h := 1; h <= 168; h++ {
				got, err := r.YeastPercentage(h, tc.room, tc.fridge, m)
				if err != nil {
					t.Fatalf("%s: %v", m, err)
				}
				if got > prev+1e-12 {
					t.Fatalf("%s room=%v fridge=%v: yeast rose from %v to %v at %dh", m, tc.room, tc.fridge, prev, got, h)
				}
				prev = got
			}
		}
	}
}

func TestClampBounds(t *testing.T) {
	r := DefaultRegistry()
	cases := []struct {
		method   domain.Method
		hours    int
		room     float64
		min, max float64
	}{
		{domain.MethodRoomTemperature, 1, 10, 0.05, 3.0},
		{domain.MethodRoomTemperature, 168, 40, 0.05, 3.0},
		{domain.MethodCold, 1, 40, 0.02, 0.5},
		{domain.MethodCold, 168, 10, 0.02, 0.5},
		{domain.MethodMixed, 1, 10, 0.05, 1.0},
		{domain.MethodMixed, 168, 40, 0.05, 1.0},
		{domain.MethodSameDay, 1, 10, 0.5, 3.0},
		{domain.MethodSameDay, 168, 40, 0.5, 3.0},
	}
	for _, c := range cases {
		got, _ := r.YeastPercentage(c.hours, c.room, 4, c.method)
		if got < c.min || got > c.max {
			t.Fatalf("%s %dh: %v outside [%v,%v]", c.method, c.hours, got, c.min, c.max)
		}
	}
	if got, _ := r.YeastPercentage(1, 10, 4, domain.MethodRoomTemperature); got != 3.0 {
		t.Fatalf("expected upper clamp, got %v", got)
	}
	if got, _ := r.YeastPercentage(168, 40, 4, domain.MethodMixed); got != 0.05 {
		t.Fatalf("expected lower clamp, got %v", got)
	}
}

func TestSameDayShortBoost(t *testing.T) {
	s := SameDay()
	one := s.Percent(1, 27, 0)
	two := s.Percent(2, 27, 0)
	if math.Abs(one-1.5*3*1.5) > 1e-12 {
		t.Fatalf("expected boosted 6.75 raw, got %v", one)
	}
	if math.Abs(two-2.25) > 1e-12 {
		t.Fatalf("expected 2.25 raw, got %v", two)
	}
}

func TestMixedDividesByTemperature(t *testing.T) {
	s := Mixed()
	warm := s.Percent(20, 30, 4)
	cool := s.Percent(20, 18, 4)
	if !(warm < cool) {
		t.Fatalf("warmer room should need less yeast: warm=%v cool=%v", warm, cool)
	}
}

func TestUnsupportedMethod(t *testing.T) {
	r := DefaultRegistry()
	if _, err := r.YeastPercentage(8, 24, 4, domain.Method("levain-only")); !errors.Is(err, domain.ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
	delete(r, domain.MethodMixed)
	if _, err := r.Lookup(domain.MethodMixed); !errors.Is(err, domain.ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod after removal, got %v", err)
	}
}

func TestConvertFresh(t *testing.T) {
	cases := []struct {
		kind domain.YeastKind
		want float64
	}{
		{domain.YeastFresh, 1.0},
		{domain.YeastInstantDry, 0.33},
		{domain.YeastActiveDry, 0.40},
	}
	for _, c := range cases {
		got, err := ConvertFresh(1.0, c.kind)
		if err != nil || math.Abs(got-c.want) > 1e-12 {
			t.Fatalf("%s: got %v err %v", c.kind, got, err)
		}
	}
	if _, err := ConvertFresh(1.0, domain.YeastSourdough); !errors.Is(err, domain.ErrSourdoughNeedsStarter) {
		t.Fatalf("expected sourdough sentinel, got %v", err)
	}
	if _, err := ConvertFresh(1.0, "wild"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdjust(t *testing.T) {
	s := RoomTemperature()
	w := 350.0
	got, notes := s.Adjust(0.4, AdjustInput{FlourStrengthW: &w, SaltPct: 2.5})
	if math.Abs(got-0.4*1.05) > 1e-12 || len(notes) != 1 {
		t.Fatalf("strong flour: got %v notes %v", got, notes)
	}
	got, notes = s.Adjust(0.4, AdjustInput{SaltPct: 4, SugarPct: 5})
	want := 0.4 * 1.05 * 0.9
	if math.Abs(got-want) > 1e-12 || len(notes) != 2 {
		t.Fatalf("salt+sugar: got %v want %v notes %v", got, want, notes)
	}
	if got, _ := s.Adjust(0.05, AdjustInput{SugarPct: 10}); got != s.Min {
		t.Fatalf("expected clamp to min, got %v", got)
	}
}

func TestColdScalesWithRoomTemperature(t *testing.T) {
	s := Cold()
	// 24h at 4°C: 4h lead-in, 18h fridge at 0.15 activity, 2h rest.
	equiv := 4 + 18*0.15 + 2.0
	for _, tc := range []struct {
		room float64
	}{{22}, {26}} {
		want := 0.15 * (24 / equiv) * math.Sqrt(math.Pow(2, (tc.room-22)/10))
		if got := s.Percent(24, tc.room, 4); math.Abs(got-want) > 1e-9 {
			t.Fatalf("room %.0f: expected %v, got %v", tc.room, want, got)
		}
	}
	if !(s.Percent(24, 26, 4) > s.Percent(24, 22, 4)) {
		t.Fatalf("cold yeast should rise with room temperature")
	}
}
