package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JaimeStill/gather/internal/pipeline"
	"github.com/JaimeStill/gather/internal/runs"
)

func inTempDir(t *testing.T, files map[string]string) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Chdir(dir)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestGraphCommand(t *testing.T) {
	inTempDir(t, nil)

	out, err := execute(t, "graph")
	if err != nil {
		t.Fatalf("graph: %v", err)
	}

	for _, step := range []string{pipeline.StepResolve, pipeline.StepFetch, pipeline.StepClassify, pipeline.StepFinalize} {
		if !strings.Contains(out, step) {
			t.Errorf("output missing step %q:\n%s", step, out)
		}
	}
	if !strings.Contains(out, "entry resolve, max steps 25") {
		t.Errorf("output missing summary:\n%s", out)
	}
}

func TestGraphCommandJSON(t *testing.T) {
	inTempDir(t, map[string]string{
		"config.toml": "[pipeline]\nentry = \"fetch\"\nmax_steps = 12\n",
	})

	out, err := execute(t, "graph", "--json")
	if err != nil {
		t.Fatalf("graph --json: %v", err)
	}

	var info runs.GraphInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if info.Name != pipeline.GraphName || info.Entry != pipeline.StepFetch || info.MaxSteps != 12 {
		t.Errorf("got %+v", info)
	}
	if len(info.Steps) != 10 {
		t.Errorf("steps: got %d, want 10", len(info.Steps))
	}
}

func TestConfigCommandRedactsSecrets(t *testing.T) {
	inTempDir(t, map[string]string{
		"config.toml": "[services.openai]\napi_key = \"sk-secret\"\n",
	})

	out, err := execute(t, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if strings.Contains(out, "sk-secret") {
		t.Errorf("api key printed:\n%s", out)
	}
	if !strings.Contains(out, redacted) {
		t.Errorf("redaction marker missing:\n%s", out)
	}
}

func TestRunCommandRequiresTarget(t *testing.T) {
	inTempDir(t, nil)

	if _, err := execute(t, "run"); err == nil {
		t.Error("run without a target succeeded")
	}
	if _, err := execute(t, "run", "   "); err == nil {
		t.Error("run with a blank target succeeded")
	}
}
