package app

import (
	"os"
	"path/filepath"
	"testing"

	"doughline/internal/config"
	"doughline/internal/domain"
)

func TestResolveConfigFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := ResolveConfig(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Owner != defaultOwner || cfg.Defaults.Style != domain.StyleNeapolitan {
		t.Fatalf("unexpected defaults %+v", cfg)
	}

	if err := os.WriteFile(filepath.Join(dir, "doughline.yml"), []byte(config.GenerateDefault("maria")), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = ResolveConfig(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Owner != "maria" {
		t.Fatalf("owner %q", cfg.Owner)
	}
}

func TestResolveOwner(t *testing.T) {
	cfg := config.Default("maria")
	if got, _ := ResolveOwner(" luca ", cfg); got != "luca" {
		t.Fatalf("override ignored: %q", got)
	}
	if got, _ := ResolveOwner("", cfg); got != "maria" {
		t.Fatalf("config owner ignored: %q", got)
	}
	t.Setenv("USER", "")
	if _, err := ResolveOwner("", &config.Config{}); err == nil {
		t.Fatalf("expected error without any owner")
	}
}

func TestRequestDefaultsUsesStyleTable(t *testing.T) {
	cfg := config.Default("maria")
	req := RequestDefaults(cfg, domain.StyleFocaccia)
	if req.HydrationPct != 75 || req.BallWeightGrams != 300 || req.OilPct != 6 || req.TotalFermentationHours != 8 {
		t.Fatalf("style defaults not applied: %+v", req)
	}
	if req.RoomTempC != 22 || req.Method != domain.MethodRoomTemperature {
		t.Fatalf("config defaults not applied: %+v", req)
	}
	if got := RequestDefaults(cfg, ""); got.Style != domain.StyleNeapolitan || got.HydrationPct != 65 {
		t.Fatalf("default style not applied: %+v", got)
	}
}
