package formulation

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"doughline/internal/domain"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func scenarioA() domain.FormulationRequest {
	return domain.FormulationRequest{
		Style:                  domain.StyleNeapolitan,
		BallWeightGrams:        250,
		NumberOfUnits:          4,
		HydrationPct:           65,
		SaltPct:                2.5,
		YeastKind:              domain.YeastFresh,
		Method:                 domain.MethodRoomTemperature,
		TotalFermentationHours: 8,
		RoomTempC:              24,
		FridgeTempC:            4,
	}
}

func TestScenarioA(t *testing.T) {
	res, err := Compute(scenarioA())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	yeast := 0.5 * (6.0 / 8.0) / math.Pow(2, (24.0-27.0)/10)
	if math.Abs(res.FreshYeastPct-yeast) > 1e-4 {
		t.Fatalf("yeast pct %v, want %v", res.FreshYeastPct, yeast)
	}
	flour := 1000 * 100 / (100 + 65 + 2.5 + yeast)
	if math.Abs(res.Ingredients.Flour-flour) > 0.06 {
		t.Fatalf("flour %v, want %v", res.Ingredients.Flour, flour)
	}
	if res.TotalDoughGrams != 1000 {
		t.Fatalf("total %v", res.TotalDoughGrams)
	}
	if math.Abs(res.Ingredients.Sum()-1000) > 0.5 {
		t.Fatalf("sum %v", res.Ingredients.Sum())
	}
	if res.Percentages.Flour != 100 || res.Percentages.Water != 65 {
		t.Fatalf("percentages %+v", res.Percentages)
	}
	if res.DDT != nil || res.Preferment != nil {
		t.Fatalf("unexpected optional sections")
	}
}

func TestScenarioBColdBelowRoom(t *testing.T) {
	a, err := Compute(scenarioA())
	if err != nil {
		t.Fatalf("compute A: %v", err)
	}
	req := scenarioA()
	req.Method = domain.MethodCold
	req.TotalFermentationHours = 24
	b, err := Compute(req)
	if err != nil {
		t.Fatalf("compute B: %v", err)
	}
	if !(b.FreshYeastPct < a.FreshYeastPct) {
		t.Fatalf("cold %v should be below room %v", b.FreshYeastPct, a.FreshYeastPct)
	}
}

func TestHydrationBoundaries(t *testing.T) {
	cases := []struct {
		hydration float64
		ok        bool
	}{
		{45.0, true},
		{95.0, true},
		{44.99, false},
		{95.01, false},
	}
	for _, c := range cases {
		req := scenarioA()
		req.Style = domain.StyleCustom
		req.HydrationPct = c.hydration
		_, err := Compute(req)
		if c.ok && err != nil {
			t.Fatalf("hydration %v should be accepted: %v", c.hydration, err)
		}
		if !c.ok {
			var ve domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != "hydration_pct" || !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("hydration %v should be rejected, got %v", c.hydration, err)
			}
		}
	}
}

func TestMassSumProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	methods := []domain.Method{domain.MethodRoomTemperature, domain.MethodCold, domain.MethodMixed, domain.MethodSameDay}
	kinds := []domain.YeastKind{domain.YeastFresh, domain.YeastInstantDry, domain.YeastActiveDry}
	for i := 0; i < 500; i++ {
		req := domain.FormulationRequest{
			Style:                  domain.StyleCustom,
			BallWeightGrams:        100 + rng.Float64()*900,
			NumberOfUnits:          1 + rng.Intn(100),
			HydrationPct:           45 + rng.Float64()*50,
			SaltPct:                1 + rng.Float64()*4,
			OilPct:                 rng.Float64() * 15,
			SugarPct:               rng.Float64() * 10,
			YeastKind:              kinds[rng.Intn(len(kinds))],
			Method:                 methods[rng.Intn(len(methods))],
			TotalFermentationHours: 1 + rng.Intn(168),
			RoomTempC:              10 + rng.Float64()*30,
			FridgeTempC:            rng.Float64() * 10,
			HumidityPct:            f64(rng.Float64() * 100),
			AltitudeMeters:         f64(rng.Float64() * 3000),
		}
		if rng.Intn(2) == 0 {
			req.Extras = []domain.Extra{{Name: "semolina", Pct: rng.Float64() * 10}, {Name: "malt", Pct: rng.Float64() * 2}}
		}
		res, err := Compute(req)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if diff := math.Abs(res.Ingredients.Sum() - res.TotalDoughGrams); diff > 0.5 {
			t.Fatalf("case %d: sum %v vs total %v", i, res.Ingredients.Sum(), res.TotalDoughGrams)
		}
	}
}

func TestPrefermentSplit(t *testing.T) {
	req := scenarioA()
	req.Preferment = &domain.PrefermentRequest{Type: domain.PrefermentPoolish}
	res, err := Compute(req)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	p := res.Preferment
	if p == nil || res.MainDough == nil {
		t.Fatalf("expected preferment and main dough")
	}
	if p.Pct != 30 || p.Hours != 12 {
		t.Fatalf("expected defaults, got %+v", p)
	}
	if math.Abs(p.WaterGrams-p.FlourGrams) > 0.1 {
		t.Fatalf("poolish should be 100%% hydration: %+v", p)
	}
	if p.FlourGrams > res.Ingredients.Flour || p.WaterGrams > res.Ingredients.Water {
		t.Fatalf("preferment exceeds totals")
	}
	if math.Abs(res.MainDough.FlourGrams+p.FlourGrams-res.Ingredients.Flour) > 0.1 {
		t.Fatalf("main + preferment flour should equal total")
	}
	if p.YeastGrams > res.Ingredients.Yeast {
		t.Fatalf("preferment yeast exceeds total")
	}
}

func TestInvalidPreferment(t *testing.T) {
	for _, pct := range []float64{0, -5, 100, 120} {
		req := scenarioA()
		req.Preferment = &domain.PrefermentRequest{Type: domain.PrefermentBiga, Pct: f64(pct)}
		if _, err := Compute(req); !errors.Is(err, domain.ErrInvalidPreferment) {
			t.Fatalf("pct %v: expected ErrInvalidPreferment, got %v", pct, err)
		}
	}
	req := scenarioA()
	req.Preferment = &domain.PrefermentRequest{Type: "sponge"}
	if _, err := Compute(req); !errors.Is(err, domain.ErrInvalidPreferment) {
		t.Fatalf("expected ErrInvalidPreferment for unknown type, got %v", err)
	}
	req = scenarioA()
	req.Preferment = &domain.PrefermentRequest{Type: domain.PrefermentBiga, Hours: intp(0)}
	if _, err := Compute(req); !errors.Is(err, domain.ErrInvalidPreferment) {
		t.Fatalf("expected ErrInvalidPreferment for zero hours, got %v", err)
	}
}

func TestImpossibleFormulation(t *testing.T) {
	req := scenarioA()
	req.Style = domain.StyleCustom
	req.HydrationPct = 50
	req.Preferment = &domain.PrefermentRequest{Type: domain.PrefermentPoolish, Pct: f64(90)}
	if _, err := Compute(req); !errors.Is(err, domain.ErrImpossibleFormulation) {
		t.Fatalf("expected ErrImpossibleFormulation, got %v", err)
	}
}

func TestUnsupportedMethod(t *testing.T) {
	req := scenarioA()
	req.Method = "overnight-levain"
	if _, err := Compute(req); !errors.Is(err, domain.ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
	if !IsDomainRule(domain.ErrUnsupportedMethod) {
		t.Fatalf("unsupported method is a domain rule")
	}
}

func TestSourdough(t *testing.T) {
	req := scenarioA()
	req.YeastKind = domain.YeastSourdough
	if _, err := Compute(req); !errors.Is(err, domain.ErrSourdoughNeedsStarter) {
		t.Fatalf("expected starter error, got %v", err)
	}
	req.StarterGrams = f64(150)
	res, err := Compute(req)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.Ingredients.Yeast != 0 {
		t.Fatalf("sourdough should use no commercial yeast, got %v", res.Ingredients.Yeast)
	}
	if len(res.Ingredients.Extras) != 1 || res.Ingredients.Extras[0].Grams != 150 {
		t.Fatalf("expected starter extra, got %+v", res.Ingredients.Extras)
	}
	if math.Abs(res.Ingredients.Sum()-1000) > 0.5 {
		t.Fatalf("sum %v", res.Ingredients.Sum())
	}
	req.StarterGrams = f64(1000)
	if _, err := Compute(req); !errors.Is(err, domain.ErrImpossibleFormulation) {
		t.Fatalf("expected impossible formulation, got %v", err)
	}
}

func TestDDTInvokedWhenMixerGiven(t *testing.T) {
	req := scenarioA()
	req.MixerType = domain.MixerSpiral
	req.FlourTempC = f64(20)
	res, err := Compute(req)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.DDT == nil {
		t.Fatalf("expected ddt result")
	}
	// 24*3 - (24 + 20 + 5.4)
	if math.Abs(res.DDT.TargetWaterTempC-22.6) > 1e-9 {
		t.Fatalf("water temp %v", res.DDT.TargetWaterTempC)
	}
}

func TestValidationRejectsUnknownEnums(t *testing.T) {
	req := scenarioA()
	req.Style = "calzone"
	if _, err := Compute(req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for style, got %v", err)
	}
	req = scenarioA()
	req.NumberOfUnits = 0
	if _, err := Compute(req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for units, got %v", err)
	}
	req = scenarioA()
	req.TotalFermentationHours = 169
	if _, err := Compute(req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for hours, got %v", err)
	}
}

func TestAnalysesAndTips(t *testing.T) {
	req := scenarioA()
	req.HydrationPct = 72
	req.FlourStrengthW = f64(180)
	req.FlourProteinPct = f64(10)
	req.WaterHardness = f64(320)
	req.WaterPh = f64(8.5)
	req.TotalFermentationHours = 36
	res, err := Compute(req)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.Flour == nil || len(res.Flour.Warnings) < 2 {
		t.Fatalf("expected flour warnings, got %+v", res.Flour)
	}
	if res.Water == nil || math.Abs(res.Water.FermentationModifier-0.855) > 1e-9 {
		t.Fatalf("expected water modifier 0.855, got %+v", res.Water)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("72%% is outside the neapolitan range and should warn")
	}
	if len(res.Tips) == 0 {
		t.Fatalf("expected tips")
	}
	if len(res.YeastAdjustments) != 1 {
		t.Fatalf("expected weak flour adjustment, got %v", res.YeastAdjustments)
	}
}

func TestYeastOverrideSkipsStrategy(t *testing.T) {
	req := scenarioA()
	req.YeastKind = domain.YeastInstantDry
	req.FlourStrengthW = f64(400)
	req.YeastPctOverride = f64(0.2)
	res, err := Compute(req)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.FreshYeastPct != 0.2 {
		t.Fatalf("fresh yeast %v, want 0.2", res.FreshYeastPct)
	}
	if res.Percentages.Yeast != 0.066 {
		t.Fatalf("instant dry yeast %v, want 0.066", res.Percentages.Yeast)
	}
	if len(res.YeastAdjustments) != 1 {
		t.Fatalf("override should skip flour adjustments: %v", res.YeastAdjustments)
	}

	for _, v := range []float64{0, -1, 6} {
		req.YeastPctOverride = f64(v)
		if _, err := Compute(req); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("override %v: %v", v, err)
		}
	}
}

func TestFlourBlend(t *testing.T) {
	req := scenarioA()
	req.FlourBlend = []domain.FlourPortion{
		{Name: "tipo 00", Pct: 70, StrengthW: f64(300), ProteinPct: f64(12)},
		{Name: "manitoba", Pct: 30, StrengthW: f64(400), ProteinPct: f64(14)},
	}
	res, err := Compute(req)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.Flour == nil || res.Flour.StrengthW == nil || *res.Flour.StrengthW != 330 || *res.Flour.ProteinPct != 12.6 {
		t.Fatalf("blend analysis %+v", res.Flour)
	}
	if len(res.FlourBlend) != 2 {
		t.Fatalf("portions %+v", res.FlourBlend)
	}
	sum := res.FlourBlend[0].Grams + res.FlourBlend[1].Grams
	if math.Abs(sum-res.Ingredients.Flour) > 0.1 {
		t.Fatalf("portions %v do not add up to flour %v", sum, res.Ingredients.Flour)
	}

	plain := scenarioA()
	plain.FlourStrengthW = f64(330)
	want, err := Compute(plain)
	if err != nil {
		t.Fatalf("compute plain: %v", err)
	}
	if res.FreshYeastPct != want.FreshYeastPct || len(res.YeastAdjustments) != 1 {
		t.Fatalf("blend W not used for yeast: %v vs %v %v", res.FreshYeastPct, want.FreshYeastPct, res.YeastAdjustments)
	}
}

func TestFlourBlendValidation(t *testing.T) {
	cases := []struct {
		name  string
		blend []domain.FlourPortion
	}{
		{"short", []domain.FlourPortion{{Name: "a", Pct: 60}, {Name: "b", Pct: 30}}},
		{"unnamed", []domain.FlourPortion{{Pct: 100}}},
		{"bad strength", []domain.FlourPortion{{Name: "a", Pct: 100, StrengthW: f64(900)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := scenarioA()
			req.FlourBlend = tc.blend
			if _, err := Compute(req); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
