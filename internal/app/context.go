package app

import (
	"fmt"
	"os"
	"strings"

	"doughline/internal/config"
	"doughline/internal/domain"
)

const defaultOwner = "local-user"

// ResolveConfig loads the workspace config, falling back to defaults when
// no doughline.yml exists yet.
func ResolveConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default(defaultOwner)
	}
	return cfg, nil
}

// ResolveOwner prefers the explicit override, then the config owner, then $USER.
func ResolveOwner(override string, cfg *config.Config) (string, error) {
	if o := strings.TrimSpace(override); o != "" {
		return o, nil
	}
	if cfg != nil && cfg.Owner != "" {
		return cfg.Owner, nil
	}
	if u := os.Getenv("USER"); u != "" {
		return u, nil
	}
	return "", fmt.Errorf("owner not specified; use --owner or set owner in doughline.yml")
}

// RequestDefaults builds a formulation request from the style table and the
// workspace defaults. An empty style means the configured default style.
func RequestDefaults(cfg *config.Config, style domain.Style) domain.FormulationRequest {
	if cfg == nil {
		cfg = config.Default(defaultOwner)
	}
	if style == "" {
		style = cfg.Defaults.Style
	}
	req := domain.FormulationRequest{
		Style:       style,
		YeastKind:   cfg.Defaults.YeastKind,
		Method:      cfg.Defaults.Method,
		RoomTempC:   cfg.Defaults.RoomTempC,
		FridgeTempC: cfg.Defaults.FridgeTempC,
	}
	spec, ok := domain.LookupStyle(style)
	if !ok {
		return req
	}
	req.BallWeightGrams = spec.DefaultBallWeightGrams
	req.NumberOfUnits = 1
	req.HydrationPct = spec.DefaultHydrationPct
	req.SaltPct = spec.DefaultSaltPct
	req.OilPct = spec.DefaultOilPct
	req.SugarPct = spec.DefaultSugarPct
	req.TotalFermentationHours = spec.DefaultFermentationHours
	return req
}
