package config

import (
	"os"
	"path/filepath"
	"testing"
)

type sampleConfig struct {
	Window  int    `default:"20"`
	Backend string `required:"true"`
}

// Not parallel: mutates the process environment.
func TestExportEnvironmentKeepsExistingVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	content := "wnav_test:\n  backend: postgres\n  window: 12\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("WNAV_TEST_BACKEND", "memory")

	if err := exportEnvironment(path); err != nil {
		t.Fatalf("exportEnvironment() error = %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("WNAV_TEST_WINDOW") })

	if got := os.Getenv("WNAV_TEST_BACKEND"); got != "memory" {
		t.Fatalf("existing variable overwritten: %q", got)
	}
	if got := os.Getenv("WNAV_TEST_WINDOW"); got != "12" {
		t.Fatalf("nested key not exported: %q", got)
	}
}

func TestExportEnvironmentIfExistsIgnoresMissingFile(t *testing.T) {
	if err := exportEnvironmentIfExists(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("exportEnvironmentIfExists() error = %v", err)
	}
}

func TestEnvName(t *testing.T) {
	t.Parallel()

	if got := envName("llm.agent_models"); got != "LLM_AGENT_MODELS" {
		t.Fatalf("envName() = %q", got)
	}
}

func TestSampleDecode(t *testing.T) {
	t.Setenv("WNAV_SAMPLE_BACKEND", "upstash")
	conf, err := New[sampleConfig]("WNAV_SAMPLE")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Backend != "upstash" || conf.Window != 20 {
		t.Fatalf("unexpected config: %#v", conf)
	}
}
