package formulation

import (
	"doughline/internal/bakers"
	"doughline/internal/domain"
)

// flourProfile is the strength and protein the yeast adjustments and the
// flour analysis work from.
type flourProfile struct {
	StrengthW  *float64
	ProteinPct *float64
}

// profileOf prefers the explicit flour values and falls back to the blend's
// weighted averages.
func profileOf(req domain.FormulationRequest) flourProfile {
	p := flourProfile{StrengthW: req.FlourStrengthW, ProteinPct: req.FlourProteinPct}
	if p.StrengthW == nil {
		p.StrengthW = weighted(req.FlourBlend, 0, func(f domain.FlourPortion) *float64 { return f.StrengthW })
	}
	if p.ProteinPct == nil {
		p.ProteinPct = weighted(req.FlourBlend, 1, func(f domain.FlourPortion) *float64 { return f.ProteinPct })
	}
	return p
}

// weighted averages the portions that carry a value, by their share.
func weighted(blend []domain.FlourPortion, places int, get func(domain.FlourPortion) *float64) *float64 {
	var sum, share float64
	for _, f := range blend {
		if v := get(f); v != nil {
			sum += *v * f.Pct
			share += f.Pct
		}
	}
	if share == 0 {
		return nil
	}
	v := bakers.Round(sum/share, places)
	return &v
}

// blendMasses splits the flour mass between the portions of a blend.
func blendMasses(blend []domain.FlourPortion, flour float64) []domain.FlourPortionMass {
	if len(blend) == 0 {
		return nil
	}
	out := make([]domain.FlourPortionMass, len(blend))
	for i, f := range blend {
		out[i] = domain.FlourPortionMass{Name: f.Name, Pct: f.Pct, Grams: bakers.Grams(bakers.Mass(flour, f.Pct))}
	}
	return out
}
