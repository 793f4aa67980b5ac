package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flowdag/dde-go/dde"
	"github.com/flowdag/dde-go/dde/config"
)

func TestParseCommandOutput(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   dde.Output
	}{
		{
			name:   "json last line",
			stdout: "building...\nlinking...\n{\"url\": \"dist/app\", \"size\": 42}\n",
			want:   dde.Output{"url": "dist/app", "size": float64(42)},
		},
		{
			name:   "json only",
			stdout: "{\"ok\": true}",
			want:   dde.Output{"ok": true},
		},
		{
			name:   "plain text",
			stdout: "all done\n",
			want:   dde.Output{"stdout": "all done"},
		},
		{
			name:   "malformed json falls back to stdout",
			stdout: "{not json",
			want:   dde.Output{"stdout": "{not json"},
		},
		{
			name:   "empty",
			stdout: "",
			want:   dde.Output{"stdout": ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCommandOutput(tt.stdout)
			if len(got) != len(tt.want) {
				t.Fatalf("output = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("output[%s] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestShellExecutor(t *testing.T) {
	t.Run("no command succeeds empty", func(t *testing.T) {
		e := newShellExecutor(map[string]string{})
		out, err := e.Execute(context.Background(), "build", dde.Input{})
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != 0 {
			t.Errorf("output = %v", out)
		}
	})

	t.Run("environment carries run context", func(t *testing.T) {
		e := newShellExecutor(map[string]string{
			"build": `printf '{"run":"%s","node":"%s","attempt":"%s"}' "$DDE_RUN_ID" "$DDE_NODE_ID" "$DDE_ATTEMPT"`,
		})
		out, err := e.Execute(context.Background(), "build", dde.Input{RunID: "r-1", Attempt: 2})
		if err != nil {
			t.Fatal(err)
		}
		if out["run"] != "r-1" || out["node"] != "build" || out["attempt"] != "2" {
			t.Errorf("output = %v", out)
		}
	})

	t.Run("input passed as json", func(t *testing.T) {
		e := newShellExecutor(map[string]string{"test": `printf '%s' "$DDE_INPUT"`})
		out, err := e.Execute(context.Background(), "test", dde.Input{
			Globals: map[string]any{"env": "prod"},
			Outputs: map[string]map[string]any{"build": {"url": "dist/app"}},
		})
		if err != nil {
			t.Fatal(err)
		}
		globals, ok := out["globals"].(map[string]any)
		if !ok || globals["env"] != "prod" {
			t.Errorf("globals = %v", out["globals"])
		}
		outputs, ok := out["outputs"].(map[string]any)
		if !ok {
			t.Fatalf("outputs = %v", out["outputs"])
		}
		build, _ := outputs["build"].(map[string]any)
		if build["url"] != "dist/app" {
			t.Errorf("outputs.build = %v", outputs["build"])
		}
	})

	t.Run("failure surfaces stderr", func(t *testing.T) {
		e := newShellExecutor(map[string]string{"deploy": "echo boom >&2; exit 1"})
		_, err := e.Execute(context.Background(), "deploy", dde.Input{})
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "boom") {
			t.Errorf("error = %v", err)
		}
		if dde.IsFatal(err) {
			t.Error("command failure should be retryable")
		}
	})
}

func TestRunFlagsSettings(t *testing.T) {
	t.Run("flags override file", func(t *testing.T) {
		f := runFlags{
			settingsPath: filepath.Join(t.TempDir(), "absent.yaml"),
			storeBackend: "memory",
			workers:      4,
			failClosed:   true,
		}
		settings, err := f.settings()
		if err != nil {
			t.Fatal(err)
		}
		if settings.Store.Backend != "memory" || settings.MaxWorkers != 4 {
			t.Errorf("settings = %+v", settings)
		}
		if settings.ConditionPolicy != "fail-closed" {
			t.Errorf("condition policy = %s", settings.ConditionPolicy)
		}
	})

	t.Run("invalid merge rejected", func(t *testing.T) {
		f := runFlags{
			settingsPath: filepath.Join(t.TempDir(), "absent.yaml"),
			storeBackend: "sqlite",
		}
		if _, err := f.settings(); err == nil {
			t.Error("sqlite backend without path accepted")
		}
	})
}

func TestOpenStore(t *testing.T) {
	t.Run("empty backend rejected", func(t *testing.T) {
		if _, err := openStore(config.DefaultSettings()); err == nil {
			t.Error("empty backend accepted")
		}
	})

	t.Run("memory", func(t *testing.T) {
		settings := config.DefaultSettings()
		settings.Store.Backend = config.BackendMemory
		s, err := openStore(settings)
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()
	})
}
