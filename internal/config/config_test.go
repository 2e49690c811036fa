package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"doughline/internal/domain"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("baker")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Owner != "baker" || cfg.Defaults.Style != domain.StyleNeapolitan {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Tolerance() != 5*time.Minute {
		t.Fatalf("tolerance %v", cfg.Tolerance())
	}
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("owner: ana\ndefaults:\n  method: cold\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Defaults.Method != domain.MethodCold || cfg.Defaults.FridgeTempC != 4 || cfg.Server.BasePath != "/v0" {
		t.Fatalf("merge failed: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"style":    "defaults:\n  style: calzone\n",
		"method":   "defaults:\n  method: levain\n",
		"room":     "defaults:\n  room_temp_c: 55\n",
		"webhook":  "notifier:\n  kind: webhook\n",
		"notifier": "notifier:\n  kind: sms\n",
		"base":     "server:\n  base_path: v0\n",
		"batch":    "notifier:\n  batch: 0\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := FromYAML([]byte("owner: [")); err == nil || !strings.Contains(err.Error(), "invalid config yaml") {
		t.Fatalf("expected yaml error, got %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("missing file: %v %v", cfg, err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("Load should fail without a file")
	}
	if err := os.WriteFile(filepath.Join(dir, "doughline.yml"), []byte(GenerateDefault("me")), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil || cfg == nil || cfg.Owner != "me" {
		t.Fatalf("load: %v %+v", err, cfg)
	}
}
