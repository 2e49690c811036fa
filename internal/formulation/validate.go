package formulation

import (
	"math"

	"doughline/internal/domain"
	"doughline/internal/environment"
)

// Absolute bounds, inclusive.
const (
	MinHydrationPct  = environment.MinHydrationPct
	MaxHydrationPct  = environment.MaxHydrationPct
	MinSaltPct       = 1.0
	MaxSaltPct       = 5.0
	MaxOilPct        = 15.0
	MaxSugarPct      = 10.0
	MinHours         = 1
	MaxHours         = 168
	MinUnits         = 1
	MaxUnits         = 100
	MinBallWeight    = 100.0
	MaxBallWeight    = 1000.0
	MinRoomTempC     = 10.0
	MaxRoomTempC     = 40.0
	MinFridgeTempC   = 0.0
	MaxFridgeTempC   = 10.0
	MaxAltitudeM     = 5000.0
	MaxExtraPct      = 50.0
	MinIngredientC   = -10.0
	MaxIngredientC   = 45.0
	MinDoughTargetC  = 15.0
	MaxDoughTargetC  = 35.0
	MaxWaterHardness = 1000.0
	MaxYeastPct      = 5.0
	blendTolerance   = 0.1
)

func checkRange(field string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return domain.ValidationError{Field: field, Value: v, Msg: "out of range"}
	}
	return nil
}

func checkOptional(field string, v *float64, lo, hi float64) error {
	if v == nil {
		return nil
	}
	return checkRange(field, *v, lo, hi)
}

// Validate checks req against the absolute bounds and known enums.
// It does not check the fermentation method; strategy lookup reports that.
func Validate(req domain.FormulationRequest) error {
	if _, ok := domain.LookupStyle(req.Style); !ok {
		return domain.ValidationError{Field: "style", Value: req.Style, Msg: "unknown style"}
	}
	if req.NumberOfUnits < MinUnits || req.NumberOfUnits > MaxUnits {
		return domain.ValidationError{Field: "number_of_units", Value: req.NumberOfUnits, Msg: "out of range"}
	}
	if req.TotalFermentationHours < MinHours || req.TotalFermentationHours > MaxHours {
		return domain.ValidationError{Field: "total_fermentation_hours", Value: req.TotalFermentationHours, Msg: "out of range"}
	}
	checks := []error{
		checkRange("ball_weight_grams", req.BallWeightGrams, MinBallWeight, MaxBallWeight),
		checkRange("hydration_pct", req.HydrationPct, MinHydrationPct, MaxHydrationPct),
		checkRange("salt_pct", req.SaltPct, MinSaltPct, MaxSaltPct),
		checkRange("oil_pct", req.OilPct, 0, MaxOilPct),
		checkRange("sugar_pct", req.SugarPct, 0, MaxSugarPct),
		checkRange("room_temp_c", req.RoomTempC, MinRoomTempC, MaxRoomTempC),
		checkRange("fridge_temp_c", req.FridgeTempC, MinFridgeTempC, MaxFridgeTempC),
		checkOptional("altitude_meters", req.AltitudeMeters, 0, MaxAltitudeM),
		checkOptional("humidity_pct", req.HumidityPct, 0, 100),
		checkOptional("weather_humidity_pct", req.WeatherHumidityPct, 0, 100),
		checkOptional("weather_temp_c", req.WeatherTempC, -30, 50),
		checkOptional("flour_temp_c", req.FlourTempC, MinIngredientC, MaxIngredientC),
		checkOptional("preferment_temp_c", req.PrefermentTempC, MinIngredientC, MaxIngredientC),
		checkOptional("target_dough_temp_c", req.TargetDoughTempC, MinDoughTargetC, MaxDoughTargetC),
		checkOptional("flour_strength_w", req.FlourStrengthW, 50, 500),
		checkOptional("flour_protein_pct", req.FlourProteinPct, 5, 20),
		checkOptional("water_hardness", req.WaterHardness, 0, MaxWaterHardness),
		checkOptional("water_ph", req.WaterPh, 0, 14),
		checkBlend(req.FlourBlend),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	switch req.YeastKind {
	case domain.YeastFresh, domain.YeastInstantDry, domain.YeastActiveDry, domain.YeastSourdough:
	default:
		return domain.ValidationError{Field: "yeast_kind", Value: req.YeastKind, Msg: "unknown yeast kind"}
	}
	if req.MixerType != "" {
		if _, ok := domain.LookupMixer(req.MixerType); !ok {
			return domain.ValidationError{Field: "mixer_type", Value: req.MixerType, Msg: "unknown mixer"}
		}
	}
	if req.YeastPctOverride != nil && (*req.YeastPctOverride <= 0 || *req.YeastPctOverride > MaxYeastPct) {
		return domain.ValidationError{Field: "yeast_pct_override", Value: *req.YeastPctOverride, Msg: "out of range"}
	}
	if req.StarterGrams != nil && *req.StarterGrams <= 0 {
		return domain.ValidationError{Field: "starter_grams", Value: *req.StarterGrams, Msg: "must be positive"}
	}
	for _, e := range req.Extras {
		if e.Name == "" {
			return domain.ValidationError{Field: "extras.name", Msg: "required"}
		}
		if err := checkRange("extras."+e.Name, e.Pct, 0, MaxExtraPct); err != nil {
			return err
		}
	}
	return nil
}

// checkBlend requires named portions whose shares add up to 100%.
func checkBlend(blend []domain.FlourPortion) error {
	if len(blend) == 0 {
		return nil
	}
	total := 0.0
	for _, f := range blend {
		if f.Name == "" {
			return domain.ValidationError{Field: "flour_blend.name", Msg: "required"}
		}
		if f.Pct <= 0 || f.Pct > 100 {
			return domain.ValidationError{Field: "flour_blend." + f.Name + ".pct", Value: f.Pct, Msg: "out of range"}
		}
		if err := checkOptional("flour_blend."+f.Name+".strength_w", f.StrengthW, 50, 500); err != nil {
			return err
		}
		if err := checkOptional("flour_blend."+f.Name+".protein_pct", f.ProteinPct, 5, 20); err != nil {
			return err
		}
		total += f.Pct
	}
	if math.Abs(total-100) > blendTolerance {
		return domain.ValidationError{Field: "flour_blend", Value: total, Msg: "shares must add up to 100"}
	}
	return nil
}
