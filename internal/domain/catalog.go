package domain

import "sort"

// StyleSpec holds the defaults and baking data of a dough style.
type StyleSpec struct {
	Style                    Style   `json:"style"`
	DisplayName              string  `json:"display_name"`
	DefaultHydrationPct      float64 `json:"default_hydration_pct"`
	MinHydrationPct          float64 `json:"min_hydration_pct"`
	MaxHydrationPct          float64 `json:"max_hydration_pct"`
	DefaultBallWeightGrams   float64 `json:"default_ball_weight_grams"`
	DefaultFermentationHours int     `json:"default_fermentation_hours"`
	DefaultSaltPct           float64 `json:"default_salt_pct"`
	DefaultOilPct            float64 `json:"default_oil_pct"`
	DefaultSugarPct          float64 `json:"default_sugar_pct"`
	Oven                     string  `json:"oven"`
	OvenTempC                float64 `json:"oven_temp_c"`
	BakeSeconds              int     `json:"bake_seconds"`
	TargetDoughTempC         float64 `json:"target_dough_temp_c"`
}

const DefaultTargetDoughTempC = 24.0

var styles = map[Style]StyleSpec{
	StyleNeapolitan:      {StyleNeapolitan, "Neapolitan", 65, 60, 70, 250, 24, 2.8, 0, 0, "wood-fired", 450, 90, 24},
	StyleNewYork:         {StyleNewYork, "New York", 60, 55, 65, 280, 24, 2.5, 2, 1, "deck", 290, 420, 24},
	StyleRoman:           {StyleRoman, "Roman (scrocchiarella)", 70, 65, 80, 220, 48, 2.5, 3, 0, "electric-pizza", 350, 180, 23},
	StyleDetroit:         {StyleDetroit, "Detroit", 70, 65, 75, 350, 4, 2.5, 4, 2, "home", 250, 900, 25},
	StyleChicagoDeepDish: {StyleChicagoDeepDish, "Chicago deep dish", 55, 50, 60, 400, 24, 2, 5, 1, "home", 220, 1800, DefaultTargetDoughTempC},
	StyleSicilian:        {StyleSicilian, "Sicilian (sfincione)", 65, 60, 70, 350, 12, 2.5, 3, 0, "home", 250, 1200, 24},
	StyleFocaccia:        {StyleFocaccia, "Focaccia", 75, 70, 85, 300, 8, 2.5, 6, 0, "home", 220, 1500, 25},
	StylePizzaBianca:     {StylePizzaBianca, "Pizza bianca", 80, 75, 85, 280, 72, 2.8, 4, 0, "electric-pizza", 300, 420, DefaultTargetDoughTempC},
	StyleGrandma:         {StyleGrandma, "Grandma", 60, 55, 65, 300, 6, 2.5, 3, 1, "home", 260, 900, 24},
	StylePan:             {StylePan, "Pan pizza", 65, 60, 70, 320, 8, 2.5, 4, 2, "home", 250, 1200, 26},
	StyleThinCrust:       {StyleThinCrust, "Thin crust", 55, 50, 60, 200, 6, 2.5, 2, 1, "home", 280, 480, DefaultTargetDoughTempC},
	StyleTavern:          {StyleTavern, "Tavern (Chicago)", 52, 48, 56, 220, 4, 2.5, 3, 2, "home", 260, 600, DefaultTargetDoughTempC},
	StylePinsaRomana:     {StylePinsaRomana, "Pinsa romana", 80, 75, 85, 260, 72, 2.5, 2, 0, "electric-pizza", 350, 240, DefaultTargetDoughTempC},
	StyleCustom:          {StyleCustom, "Custom", 62, 45, 90, 250, 12, 2.5, 0, 0, "home", 250, 600, DefaultTargetDoughTempC},
}

// LookupStyle returns the spec for a style.
func LookupStyle(s Style) (StyleSpec, bool) {
	spec, ok := styles[s]
	return spec, ok
}

// Styles returns every known style ordered by identifier.
func Styles() []StyleSpec {
	out := make([]StyleSpec, 0, len(styles))
	for _, s := range styles {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Style < out[j].Style })
	return out
}

// MixerSpec describes how a mixer heats the dough.
type MixerSpec struct {
	Mixer                   MixerType `json:"mixer"`
	FrictionFactor          float64   `json:"friction_factor"` // °C per minute of mixing
	TypicalMixingMinutes    int       `json:"typical_mixing_minutes"`
	MaxRecommendedHydration float64   `json:"max_recommended_hydration_pct"`
}

var mixers = map[MixerType]MixerSpec{
	MixerHand:      {MixerHand, 0.3, 12, 85},
	MixerStandHome: {MixerStandHome, 0.5, 10, 72},
	MixerStandPro:  {MixerStandPro, 0.7, 8, 78},
	MixerSpiral:    {MixerSpiral, 0.9, 6, 85},
	MixerFork:      {MixerFork, 0.4, 15, 80},
}

func LookupMixer(m MixerType) (MixerSpec, bool) {
	spec, ok := mixers[m]
	return spec, ok
}

// PrefermentSpec gives the hydration and commercial yeast share of a preferment.
type PrefermentSpec struct {
	Type          PrefermentType
	HydrationPct  float64
	YeastFraction float64
}

var preferments = map[PrefermentType]PrefermentSpec{
	PrefermentPoolish:      {PrefermentPoolish, 100, 0.001},
	PrefermentBiga:         {PrefermentBiga, 55, 0.002},
	PrefermentLievitoMadre: {PrefermentLievitoMadre, 45, 0},
}

func LookupPreferment(p PrefermentType) (PrefermentSpec, bool) {
	spec, ok := preferments[p]
	return spec, ok
}
