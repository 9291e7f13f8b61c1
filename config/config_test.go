package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.yaml")
	content := "addr: \":9100\"\nscene_dir: /srv/scenes\nfont: fonts/label.fnt\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Errorf("Addr=%q", cfg.Addr)
	}
	if cfg.SceneDir != "/srv/scenes" {
		t.Errorf("SceneDir=%q", cfg.SceneDir)
	}
	if cfg.WebDir != "web" {
		t.Errorf("WebDir=%q; expected default", cfg.WebDir)
	}
	if cfg.FontPath != "fonts/label.fnt" {
		t.Errorf("FontPath=%q", cfg.FontPath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
