package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/nimburion/devserver/pkg/config"
	"github.com/nimburion/devserver/pkg/observability/logger"
	"github.com/nimburion/devserver/pkg/version"
)

// run executes the root command with args and an isolated dotenv path.
func run(t *testing.T, opts CommandOptions, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--dotenv-file", filepath.Join(t.TempDir(), "absent.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, CommandOptions{}, "version")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Service:    " + version.ServiceName, "Version:", "Commit:", "Build Time:", "Go:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigShow(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		args  []string
		check func(t *testing.T, cfg config.Config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg config.Config) {
				if cfg.HTTP.Port != 3000 || cfg.HTTP.StaticDir != "./public" {
					t.Errorf("http = %+v", cfg.HTTP)
				}
			},
		},
		{
			name: "environment",
			env:  map[string]string{"PORT": "8081", "ENVIRONMENT": "staging"},
			check: func(t *testing.T, cfg config.Config) {
				if cfg.HTTP.Port != 8081 || cfg.Service.Environment != "staging" {
					t.Errorf("cfg = %+v", cfg)
				}
			},
		},
		{
			name: "flags win over environment",
			env:  map[string]string{"PORT": "8081"},
			args: []string{"--port", "4000", "--router-type", "gin"},
			check: func(t *testing.T, cfg config.Config) {
				if cfg.HTTP.Port != 4000 || cfg.RouterType != "gin" {
					t.Errorf("cfg = %+v", cfg)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			out, err := run(t, CommandOptions{}, append([]string{"config", "show"}, tt.args...)...)
			if err != nil {
				t.Fatal(err)
			}
			var cfg config.Config
			if err := yaml.Unmarshal([]byte(out), &cfg); err != nil {
				t.Fatalf("output is not yaml: %v\n%s", err, out)
			}
			tt.check(t, cfg)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	out, err := run(t, CommandOptions{}, "config", "validate")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Configuration is valid") {
		t.Errorf("output = %q", out)
	}

	t.Setenv("PORT", "not-a-port")
	if _, err := run(t, CommandOptions{}, "config", "validate"); err == nil {
		t.Fatal("expected an unparsable PORT to fail validation")
	}
}

func TestServe_IsDefaultCommand(t *testing.T) {
	for _, args := range [][]string{nil, {"serve"}} {
		var got *config.Config
		opts := CommandOptions{
			LogOutput: &bytes.Buffer{},
			RunServer: func(ctx context.Context, cfg *config.Config, log logger.Logger) error {
				got = cfg
				return nil
			},
		}
		if _, err := run(t, opts, append(args, "--static-dir", "./dist")...); err != nil {
			t.Fatalf("args %v: %v", args, err)
		}
		if got == nil || got.HTTP.StaticDir != "./dist" {
			t.Fatalf("args %v: RunServer got %+v", args, got)
		}
	}
}

func TestServe_InvalidPortIsFatal(t *testing.T) {
	t.Setenv("PORT", "70000")
	called := false
	opts := CommandOptions{RunServer: func(context.Context, *config.Config, logger.Logger) error {
		called = true
		return nil
	}}
	if _, err := run(t, opts, "serve"); err == nil {
		t.Fatal("expected a config error")
	}
	if called {
		t.Error("server must not start with invalid config")
	}
}

func TestServe_ReadsDotEnv(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(dotenv, []byte("STATIC_DIR=./from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var got *config.Config
	cmd := NewRootCommand(CommandOptions{
		LogOutput: &bytes.Buffer{},
		RunServer: func(ctx context.Context, cfg *config.Config, log logger.Logger) error {
			got = cfg
			return nil
		},
	})
	cmd.SetArgs([]string{"serve", "--dotenv-file", dotenv})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if got.HTTP.StaticDir != "./from-dotenv" {
		t.Errorf("static_dir = %q", got.HTTP.StaticDir)
	}
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Observability.LogLevel = "verbose"

	var out bytes.Buffer
	log, err := NewLogger(cfg, &out)
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("hidden")
	log.Info("shown")

	got := out.String()
	if strings.Contains(got, "hidden") {
		t.Error("debug entry logged at info level")
	}
	if !strings.Contains(got, "shown") || !strings.Contains(got, "unknown log level") {
		t.Errorf("output = %s", got)
	}
}

func TestNewLogger_RejectsUnknownFormat(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Observability.LogFormat = "xml"
	if _, err := NewLogger(cfg, &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}
