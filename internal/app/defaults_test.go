package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("MODQ_CONFIG_PATH", "/srv/modq/modq.toml")
		t.Setenv("MODQ_HOME", "/srv/modq")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		want := map[string]string{
			"config_path": "/srv/modq/modq.toml",
			"base_dir":    "/srv/modq",
			"log_dir":     "/srv/modq/log",
		}
		for k, v := range want {
			if defaults[k] != v {
				t.Errorf("%s = %q, want %q", k, defaults[k], v)
			}
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("MODQ_CONFIG_PATH", "")
		t.Setenv("MODQ_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()
		wantBase := filepath.Join(homeDir, ".local", "share", "modq")
		want := map[string]string{
			"config_path": filepath.Join(homeDir, ".config", "modq.toml"),
			"base_dir":    wantBase,
			"log_dir":     filepath.Join(wantBase, "log"),
		}
		for k, v := range want {
			if defaults[k] != v {
				t.Errorf("%s = %q, want %q", k, defaults[k], v)
			}
		}
	})
}
