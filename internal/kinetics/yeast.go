package kinetics

import (
	"fmt"

	"doughline/internal/domain"
)

var conversionFactors = map[domain.YeastKind]float64{
	domain.YeastFresh:      1.0,
	domain.YeastInstantDry: 0.33,
	domain.YeastActiveDry:  0.40,
	domain.YeastSourdough:  0.0,
}

// ConversionFactor returns the mass of kind equivalent to one unit of fresh yeast.
// Sourdough has no generic factor and reports ErrSourdoughNeedsStarter.
func ConversionFactor(kind domain.YeastKind) (float64, error) {
	f, ok := conversionFactors[kind]
	if !ok {
		return 0, domain.ValidationError{Field: "yeast_kind", Value: kind, Msg: "unknown yeast kind"}
	}
	if kind == domain.YeastSourdough {
		return 0, domain.ErrSourdoughNeedsStarter
	}
	return f, nil
}

// ConvertFresh converts a fresh-yeast percentage into the percentage of kind.
func ConvertFresh(freshPct float64, kind domain.YeastKind) (float64, error) {
	f, err := ConversionFactor(kind)
	if err != nil {
		return 0, err
	}
	return freshPct * f, nil
}

// Adjustment inputs that modulate the strategy's yeast percentage.
type AdjustInput struct {
	FlourStrengthW *float64
	SaltPct        float64
	SugarPct       float64
}

// Adjust applies flour strength, salt and sugar corrections to pct and
// clamps the outcome to the strategy's bounds. It returns the applied notes.
func (s Strategy) Adjust(pct float64, in AdjustInput) (float64, []string) {
	var notes []string
	if in.FlourStrengthW != nil {
		w := *in.FlourStrengthW
		switch {
		case w > 300:
			f := 1 + (w-300)*0.001
			pct *= f
			notes = append(notes, fmt.Sprintf("strong flour W=%.0f: yeast x%.3f", w, f))
		case w < 220:
			f := 1 - (220-w)*0.001
			pct *= f
			notes = append(notes, fmt.Sprintf("weak flour W=%.0f: yeast x%.3f", w, f))
		}
	}
	if in.SaltPct > 3 {
		f := 1 + (in.SaltPct-3)*0.05
		pct *= f
		notes = append(notes, fmt.Sprintf("salt %.1f%% slows yeast: x%.3f", in.SaltPct, f))
	}
	if in.SugarPct > 0 {
		f := 1 - in.SugarPct*0.02
		pct *= f
		notes = append(notes, fmt.Sprintf("sugar %.1f%% feeds yeast: x%.3f", in.SugarPct, f))
	}
	if pct < s.Min {
		pct = s.Min
	}
	if pct > s.Max {
		pct = s.Max
	}
	return pct, notes
}
