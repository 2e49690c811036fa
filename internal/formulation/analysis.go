package formulation

import (
	"fmt"

	"doughline/internal/bakers"
	"doughline/internal/domain"
)

func styleWarnings(req domain.FormulationRequest, style domain.StyleSpec, hydration float64) []string {
	var out []string
	if hydration < style.MinHydrationPct || hydration > style.MaxHydrationPct {
		out = append(out, fmt.Sprintf("hydration %.1f%% is outside the usual %.0f-%.0f%% for %s",
			hydration, style.MinHydrationPct, style.MaxHydrationPct, style.DisplayName))
	}
	if req.MixerType != "" {
		if m, ok := domain.LookupMixer(req.MixerType); ok && hydration > m.MaxRecommendedHydration {
			out = append(out, fmt.Sprintf("%s mixer handles up to about %.0f%% hydration", req.MixerType, m.MaxRecommendedHydration))
		}
	}
	return out
}

func analyzeFlour(req domain.FormulationRequest, prof flourProfile, hydration float64) *domain.FlourAnalysis {
	if prof.StrengthW == nil && prof.ProteinPct == nil {
		return nil
	}
	a := &domain.FlourAnalysis{StrengthW: prof.StrengthW, ProteinPct: prof.ProteinPct}
	if prof.StrengthW != nil {
		w := *prof.StrengthW
		switch {
		case w < 200:
			a.Warnings = append(a.Warnings, "weak flour (W<200) may not survive a long fermentation")
			if req.TotalFermentationHours > 24 {
				a.Warnings = append(a.Warnings, fmt.Sprintf("%dh is long for this flour, consider 24h or less", req.TotalFermentationHours))
			}
		case w > 350:
			a.Recommendations = append(a.Recommendations, "strong flour (W>350) suits 48-72h fermentation")
		}
		lo := bakers.Round(55+(w-200)*0.05, 1)
		hi := bakers.Round(65+(w-200)*0.08, 1)
		a.SuggestedMinHydPct = &lo
		a.SuggestedMaxHydPct = &hi
		switch {
		case hydration > hi:
			a.Warnings = append(a.Warnings, fmt.Sprintf("hydration %.0f%% may be too high for W=%.0f, the dough can turn sticky", hydration, w))
		case hydration < lo:
			a.Recommendations = append(a.Recommendations, fmt.Sprintf("W=%.0f can take %.0f-%.0f%% hydration", w, lo, hi))
		}
		if req.Style == domain.StyleNeapolitan && (w < 250 || w > 320) {
			a.Recommendations = append(a.Recommendations, "neapolitan dough usually uses W 260-300 flour")
		}
	}
	if prof.ProteinPct != nil {
		p := *prof.ProteinPct
		if p < 11 && hydration > 65 {
			a.Warnings = append(a.Warnings, fmt.Sprintf("protein %.1f%% is low for %.0f%% hydration", p, hydration))
		}
		if p > 14 && req.Style == domain.StyleNeapolitan {
			a.Warnings = append(a.Warnings, "very high protein gives a chewy neapolitan crust")
		}
	}
	return a
}

func analyzeWater(req domain.FormulationRequest) *domain.WaterAnalysis {
	if req.WaterHardness == nil && req.WaterPh == nil {
		return nil
	}
	a := &domain.WaterAnalysis{Hardness: req.WaterHardness, Ph: req.WaterPh, FermentationModifier: 1}
	if req.WaterHardness != nil {
		h := *req.WaterHardness
		switch {
		case h < 50:
			a.Effects = append(a.Effects, "very soft water: faster fermentation, weaker gluten")
			a.FermentationModifier *= 1.1
			a.Recommendations = append(a.Recommendations, "consider a pinch of mineral salt or harder water")
		case h > 200:
			a.Effects = append(a.Effects, "hard water: slower fermentation, tighter gluten")
			a.FermentationModifier *= 0.9
			if h > 300 {
				a.Recommendations = append(a.Recommendations, "very hard water can inhibit yeast, consider filtering")
			}
		default:
			a.Effects = append(a.Effects, "moderate hardness")
		}
	}
	if req.WaterPh != nil {
		ph := *req.WaterPh
		switch {
		case ph < 6.5:
			a.Effects = append(a.Effects, "acidic water (pH<6.5) may speed fermentation")
			a.FermentationModifier *= 1.05
		case ph > 8:
			a.Effects = append(a.Effects, "alkaline water (pH>8) may slow fermentation")
			a.FermentationModifier *= 0.95
			a.Recommendations = append(a.Recommendations, "use lower-pH water or a drop of lemon juice")
		}
	}
	a.FermentationModifier = bakers.Round(a.FermentationModifier, 3)
	return a
}

func tips(req domain.FormulationRequest, style domain.StyleSpec, hydration float64) []string {
	var out []string
	if hydration >= 70 {
		out = append(out, "at 70%+ hydration use coil folds instead of intensive kneading")
		out = append(out, "wet your hands when balling to stop the dough sticking")
	}
	if hydration < 55 {
		out = append(out, "low hydration gives a stiff dough, good for new york style")
	}
	switch req.Method {
	case domain.MethodCold, domain.MethodMixed:
		out = append(out, "take the dough out of the fridge at least 2 hours before baking")
	}
	if style.Oven == "home" {
		out = append(out, "use a stone or steel on the lowest rack and preheat for at least 45 minutes")
	}
	if req.Style == domain.StyleNeapolitan {
		out = append(out, "look for leopard spotting on the base and a puffy cornicione")
	}
	if req.RoomTempC > 26 {
		out = append(out, "above 26°C fermentation speeds up, shorten the time or reduce the yeast")
	}
	return out
}
