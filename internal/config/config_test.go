package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Extractor != "native" {
		t.Errorf("Extractor = %q, want native", cfg.Extractor)
	}
}

func TestDefaultsFallsBackToVirtualEnv(t *testing.T) {
	old, had := os.LookupEnv("VIRTUAL_ENV")
	t.Cleanup(func() {
		if had {
			os.Setenv("VIRTUAL_ENV", old)
		} else {
			os.Unsetenv("VIRTUAL_ENV")
		}
	})

	os.Setenv("VIRTUAL_ENV", "/opt/sibling-env")
	cfg := Defaults()
	if cfg.EnvRoot != "/opt/sibling-env" {
		t.Errorf("EnvRoot = %q, want /opt/sibling-env", cfg.EnvRoot)
	}
}

func TestLoadExplicitMissingIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
	if _, err := Load(path, true); err == nil {
		t.Fatal("expected error for an explicitly requested missing config file")
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clego.yaml")
	content := `
env_root: /opt/clego-env
search_dirs:
  - /lib
  - /usr/lib
extractor: subprocess
context_deadline_ms: 5000
override_policy_script: policy.js
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EnvRoot != "/opt/clego-env" {
		t.Errorf("EnvRoot = %q", cfg.EnvRoot)
	}
	if cfg.Extractor != "subprocess" {
		t.Errorf("Extractor = %q, want subprocess", cfg.Extractor)
	}
	if cfg.Deadline().Seconds() != 5 {
		t.Errorf("Deadline() = %v, want 5s", cfg.Deadline())
	}
	if cfg.SearchPath() != "/lib:/usr/lib" {
		t.Errorf("SearchPath() = %q, want /lib:/usr/lib", cfg.SearchPath())
	}
}
