// Package formulation turns a FormulationRequest into ingredient masses,
// a preferment split and a water temperature target.
package formulation

import (
	"errors"
	"fmt"

	"doughline/internal/bakers"
	"doughline/internal/ddt"
	"doughline/internal/domain"
	"doughline/internal/environment"
	"doughline/internal/kinetics"
)

const (
	DefaultPrefermentPct   = 30.0
	DefaultPrefermentHours = 12
	starterName            = "sourdough starter"
)

// Calculator computes formulations with a fixed strategy registry.
type Calculator struct {
	Registry kinetics.Registry
}

func New() Calculator {
	return Calculator{Registry: kinetics.DefaultRegistry()}
}

// Compute runs the formulation with the default strategies.
func Compute(req domain.FormulationRequest) (domain.FormulationResult, error) {
	return New().Compute(req)
}

// Compute is deterministic and has no side effects.
func (c Calculator) Compute(req domain.FormulationRequest) (domain.FormulationResult, error) {
	if err := Validate(req); err != nil {
		return domain.FormulationResult{}, err
	}
	style, _ := domain.LookupStyle(req.Style)

	env := environment.Correct(environment.Input{
		HydrationPct:       req.HydrationPct,
		FermentationHours:  req.TotalFermentationHours,
		RoomTempC:          req.RoomTempC,
		AltitudeMeters:     req.AltitudeMeters,
		HumidityPct:        req.HumidityPct,
		WeatherTempC:       req.WeatherTempC,
		WeatherHumidityPct: req.WeatherHumidityPct,
	})
	hydration := env.HydrationPct

	strategy, err := c.Registry.Lookup(req.Method)
	if err != nil {
		return domain.FormulationResult{}, err
	}
	flourProf := profileOf(req)
	var fresh float64
	var notes []string
	if req.YeastPctOverride != nil {
		fresh = *req.YeastPctOverride
		notes = []string{fmt.Sprintf("fresh yeast set to %.3f%%, strategy skipped", fresh)}
	} else {
		fresh = strategy.YeastPercentage(req.TotalFermentationHours, req.RoomTempC, req.FridgeTempC) * env.YeastFactor()
		fresh, notes = strategy.Adjust(fresh, kinetics.AdjustInput{
			FlourStrengthW: flourProf.StrengthW,
			SaltPct:        req.SaltPct,
			SugarPct:       req.SugarPct,
		})
	}

	yeastPct := 0.0
	starter := 0.0
	yeastFactor := 0.0
	if req.YeastKind == domain.YeastSourdough {
		if req.StarterGrams == nil {
			return domain.FormulationResult{}, domain.ErrSourdoughNeedsStarter
		}
		starter = *req.StarterGrams
	} else {
		yeastFactor, err = kinetics.ConversionFactor(req.YeastKind)
		if err != nil {
			return domain.FormulationResult{}, err
		}
		yeastPct = fresh * yeastFactor
	}

	total := float64(req.NumberOfUnits) * req.BallWeightGrams
	if starter >= total {
		return domain.FormulationResult{}, fmt.Errorf("%w: starter %.1fg exceeds dough weight %.1fg", domain.ErrImpossibleFormulation, starter, total)
	}
	pcts := []float64{hydration, req.SaltPct, req.OilPct, req.SugarPct, yeastPct}
	for _, e := range req.Extras {
		pcts = append(pcts, e.Pct)
	}
	flour := bakers.FlourForTotal(total-starter, pcts...)

	ing := domain.Ingredients{
		Flour: bakers.Grams(flour),
		Salt:  bakers.Grams(bakers.Mass(flour, req.SaltPct)),
		Yeast: bakers.Grams(bakers.Mass(flour, yeastPct)),
		Oil:   bakers.Grams(bakers.Mass(flour, req.OilPct)),
		Sugar: bakers.Grams(bakers.Mass(flour, req.SugarPct)),
	}
	for _, e := range req.Extras {
		ing.Extras = append(ing.Extras, domain.ExtraMass{Name: e.Name, Pct: e.Pct, Grams: bakers.Grams(bakers.Mass(flour, e.Pct))})
	}
	if starter > 0 {
		ing.Extras = append(ing.Extras, domain.ExtraMass{
			Name:  starterName,
			Pct:   bakers.Round(bakers.Percent(starter, flour), 2),
			Grams: bakers.Grams(starter),
		})
	}
	// Water absorbs the rounding remainder so the masses add up to the dough weight.
	ing.Water = bakers.Grams(total - ing.Sum())
	if ing.Water < 0 {
		return domain.FormulationResult{}, fmt.Errorf("%w: negative water mass", domain.ErrImpossibleFormulation)
	}

	res := domain.FormulationResult{
		Style:             req.Style,
		Method:            req.Method,
		YeastKind:         req.YeastKind,
		NumberOfUnits:     req.NumberOfUnits,
		BallWeightGrams:   req.BallWeightGrams,
		FermentationHours: req.TotalFermentationHours,
		RoomTempC:         req.RoomTempC,
		FridgeTempC:       req.FridgeTempC,
		TotalDoughGrams:   bakers.Grams(total),
		Ingredients:       ing,
		FlourBlend:        blendMasses(req.FlourBlend, ing.Flour),
		Percentages: domain.BakersPercentages{
			Flour: 100,
			Water: bakers.Round(hydration, 2),
			Salt:  req.SaltPct,
			Yeast: bakers.Round(yeastPct, 3),
			Oil:   req.OilPct,
			Sugar: req.SugarPct,
		},
		FreshYeastPct:    bakers.Round(fresh, 4),
		YeastAdjustments: notes,
		Environment: domain.EnvironmentAdjustments{
			HydrationDeltaPct:         bakers.Round(env.HydrationDeltaPct, 2),
			YeastCorrectionPct:        bakers.Round(env.YeastCorrectionPct, 2),
			FermentationCorrectionPct: bakers.Round(env.FermentationCorrectionPct, 2),
			CorrectedFermentationHrs:  env.CorrectedFermentationHours,
			PressureHPa:               env.PressureHPa,
			Recommendations:           env.Recommendations,
		},
	}

	if req.Preferment != nil {
		split, main, err := splitPreferment(*req.Preferment, ing, yeastFactor)
		if err != nil {
			return domain.FormulationResult{}, err
		}
		res.Preferment = &split
		res.MainDough = &main
	}

	if req.MixerType != "" || req.FlourTempC != nil || req.PrefermentTempC != nil {
		d, err := ddt.Calculate(ddtInput(req))
		if err != nil {
			return domain.FormulationResult{}, err
		}
		res.DDT = &d
	}

	res.Warnings = styleWarnings(req, style, hydration)
	res.Flour = analyzeFlour(req, flourProf, hydration)
	res.Water = analyzeWater(req)
	res.Tips = tips(req, style, hydration)
	return res, nil
}

func ddtInput(req domain.FormulationRequest) ddt.Input {
	in := ddt.Input{
		TargetDoughTempC: ddt.TargetFor(req.Style),
		RoomTempC:        req.RoomTempC,
		FlourTempC:       req.RoomTempC,
		PrefermentTempC:  req.PrefermentTempC,
		Mixer:            req.MixerType,
	}
	if in.Mixer == "" {
		in.Mixer = domain.MixerHand
	}
	if req.FlourTempC != nil {
		in.FlourTempC = *req.FlourTempC
	}
	if req.TargetDoughTempC != nil {
		in.TargetDoughTempC = *req.TargetDoughTempC
	}
	return in
}

// splitPreferment carves the preferment out of the rounded totals. Preferment
// yeast never exceeds the total yeast.
func splitPreferment(p domain.PrefermentRequest, ing domain.Ingredients, yeastFactor float64) (domain.PrefermentSplit, domain.MainDough, error) {
	spec, ok := domain.LookupPreferment(p.Type)
	if !ok {
		return domain.PrefermentSplit{}, domain.MainDough{}, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidPreferment, p.Type)
	}
	pct := DefaultPrefermentPct
	if p.Pct != nil {
		pct = *p.Pct
	}
	if pct <= 0 || pct >= 100 {
		return domain.PrefermentSplit{}, domain.MainDough{}, fmt.Errorf("%w: percentage %.2f must be between 0 and 100 exclusive", domain.ErrInvalidPreferment, pct)
	}
	hours := DefaultPrefermentHours
	if p.Hours != nil {
		hours = *p.Hours
	}
	if hours < 1 || hours > MaxHours {
		return domain.PrefermentSplit{}, domain.MainDough{}, fmt.Errorf("%w: hours %d out of range", domain.ErrInvalidPreferment, hours)
	}

	pFlour := bakers.Grams(ing.Flour * pct / 100)
	pWater := bakers.Grams(pFlour * spec.HydrationPct / 100)
	pYeast := bakers.Grams(pFlour * spec.YeastFraction * yeastFactor)
	if pYeast > ing.Yeast {
		pYeast = ing.Yeast
	}
	split := domain.PrefermentSplit{
		Type:       p.Type,
		Pct:        pct,
		FlourGrams: pFlour,
		WaterGrams: pWater,
		YeastGrams: pYeast,
		Hours:      hours,
	}
	main := domain.MainDough{
		FlourGrams: bakers.Grams(ing.Flour - pFlour),
		WaterGrams: bakers.Grams(ing.Water - pWater),
		SaltGrams:  ing.Salt,
		YeastGrams: bakers.Grams(ing.Yeast - pYeast),
		OilGrams:   ing.Oil,
		SugarGrams: ing.Sugar,
	}
	if main.FlourGrams < 0 || main.WaterGrams < 0 || main.YeastGrams < 0 {
		return split, main, fmt.Errorf("%w: %s needs %.1fg water but the dough only has %.1fg",
			domain.ErrImpossibleFormulation, p.Type, pWater, ing.Water)
	}
	return split, main, nil
}

// IsDomainRule reports whether err is a formulation rule violation rather than bad input.
func IsDomainRule(err error) bool {
	return errors.Is(err, domain.ErrUnsupportedMethod) ||
		errors.Is(err, domain.ErrInvalidPreferment) ||
		errors.Is(err, domain.ErrImpossibleFormulation) ||
		errors.Is(err, domain.ErrSourdoughNeedsStarter)
}
