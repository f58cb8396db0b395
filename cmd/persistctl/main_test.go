package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const people = `[
  {"name": "ann", "role": "admin", "age": 31},
  {"name": "bob", "role": "dev", "age": 25},
  {"name": "cid", "role": "dev", "age": 40}
]`

// setup writes a sqlite config and a data file into a temp dir.
func setup(t *testing.T) (configFile, dataFile string) {
	t.Helper()
	dir := t.TempDir()
	configFile = filepath.Join(dir, "persistctl.yaml")
	cfg := "name: persistctl\n" +
		"environment: production\n" +
		"logging:\n  level: error\n" +
		"storage:\n  driver: sqlite\n  collection: people\n" +
		"  sql:\n    dsn: " + filepath.Join(dir, "people.db") + "\n    auto_migrate: true\n    log_level: silent\n"
	if err := os.WriteFile(configFile, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	dataFile = filepath.Join(dir, "people.json")
	if err := os.WriteFile(dataFile, []byte(people), 0o600); err != nil {
		t.Fatal(err)
	}
	return configFile, dataFile
}

func run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = cli(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	code, out, errOut := run(t, args...)
	if code != 0 {
		t.Fatalf("%v exited %d: %s", args, code, errOut)
	}
	return out
}

func names(t *testing.T, jsonLines string) []string {
	t.Helper()
	var got []string
	for _, line := range strings.Split(strings.TrimSpace(jsonLines), "\n") {
		if line == "" {
			continue
		}
		var d map[string]any
		if err := json.Unmarshal([]byte(line), &d); err != nil {
			t.Fatalf("bad JSON line %q: %v", line, err)
		}
		got = append(got, d["name"].(string))
	}
	return got
}

func TestCLI_Usage(t *testing.T) {
	code, _, errOut := run(t)
	if code != 2 {
		t.Errorf("expected exit 2 without a command, got %d", code)
	}
	if !strings.Contains(errOut, "Commands:") {
		t.Errorf("expected usage, got %q", errOut)
	}

	code, _, errOut = run(t, "frobnicate")
	if code != 2 || !strings.Contains(errOut, `unknown command "frobnicate"`) {
		t.Errorf("unknown command: code=%d stderr=%q", code, errOut)
	}

	if code, _, _ := run(t, "--help"); code != 0 {
		t.Errorf("--help should exit 0, got %d", code)
	}
}

func TestCLI_ImportListGet(t *testing.T) {
	cfg, data := setup(t)

	out := mustRun(t, "-c", cfg, "import", "--batch", "2", data)
	if out != "1\n2\n3\n" {
		t.Errorf("import printed %q, want ids 1..3", out)
	}

	if got := names(t, mustRun(t, "-c", cfg, "list")); strings.Join(got, ",") != "ann,bob,cid" {
		t.Errorf("list = %v", got)
	}
	if got := names(t, mustRun(t, "-c", cfg, "list", "--sort", "-age", "-n", "2")); strings.Join(got, ",") != "cid,ann" {
		t.Errorf("sorted list = %v", got)
	}
	if got := names(t, mustRun(t, "-c", cfg, "list", "-f", "role=dev", "-f", "age(min)=30")); strings.Join(got, ",") != "cid" {
		t.Errorf("filtered list = %v", got)
	}

	if got := names(t, mustRun(t, "-c", cfg, "get", "2")); strings.Join(got, ",") != "bob" {
		t.Errorf("get 2 = %v", got)
	}
	code, _, errOut := run(t, "-c", cfg, "get", "99")
	if code != 1 || !strings.Contains(errOut, "not found") {
		t.Errorf("get 99: code=%d stderr=%q", code, errOut)
	}
}

func TestCLI_SearchCountDelete(t *testing.T) {
	cfg, data := setup(t)
	mustRun(t, "-c", cfg, "import", data)

	if got := names(t, mustRun(t, "-c", cfg, "search", "dev")); strings.Join(got, ",") != "bob,cid" {
		t.Errorf("search dev = %v", got)
	}
	if out := mustRun(t, "-c", cfg, "count", "-f", "role=dev"); out != "2\n" {
		t.Errorf("count = %q", out)
	}

	if out := mustRun(t, "-c", cfg, "delete", "1", "3", "42"); out != "2 deleted\n" {
		t.Errorf("delete printed %q", out)
	}
	if out := mustRun(t, "-c", cfg, "count"); out != "1\n" {
		t.Errorf("count after delete = %q", out)
	}
}

func TestCLI_Health(t *testing.T) {
	cfg, _ := setup(t)
	out := mustRun(t, "-c", cfg, "health")

	var h struct {
		Status     string `json:"status"`
		Components []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"components"`
	}
	if err := json.Unmarshal([]byte(out), &h); err != nil {
		t.Fatal(err)
	}
	if h.Status != "up" || len(h.Components) != 1 || h.Components[0].Status != "up" {
		t.Errorf("unexpected health %s", out)
	}
}

func TestCLI_Errors(t *testing.T) {
	cfg, _ := setup(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"import without files", []string{"import"}, "at least one file"},
		{"import missing file", []string{"import", "nope.json"}, "nope.json"},
		{"bad batch", []string{"import", "--batch", "0", "x.json"}, "batch: must be at least 1"},
		{"negative limit", []string{"list", "-n", "-1"}, "limit: must be at least 0"},
		{"bad filter", []string{"list", "-f", "age"}, "key=value"},
		{"unknown filter op", []string{"list", "-f", "age(between)=1"}, "between"},
		{"get without id", []string{"get"}, "exactly one id"},
		{"search without terms", []string{"search"}, "at least one term"},
		{"delete without ids", []string{"delete"}, "at least one id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, _, errOut := run(t, append([]string{"-c", cfg}, tc.args...)...)
			if code != 1 {
				t.Errorf("expected exit 1, got %d", code)
			}
			if !strings.Contains(errOut, tc.want) {
				t.Errorf("stderr %q does not mention %q", errOut, tc.want)
			}
		})
	}
}

func TestCLI_ComponentLogs(t *testing.T) {
	cfg, data := setup(t)
	raw, err := os.ReadFile(cfg)
	if err != nil {
		t.Fatal(err)
	}
	debug := strings.Replace(string(raw), "level: error\n", "level: debug\n  format: json\n", 1)
	if err := os.WriteFile(cfg, []byte(debug), 0o600); err != nil {
		t.Fatal(err)
	}

	code, _, errOut := run(t, "-c", cfg, "import", data)
	if code != 0 {
		t.Fatalf("import exited %d: %s", code, errOut)
	}
	for _, want := range []string{`"component":"storage"`, `"message":"records saved"`, `"component":"gateway"`} {
		if !strings.Contains(errOut, want) {
			t.Errorf("stderr missing %s: %s", want, errOut)
		}
	}

	_, _, errOut = run(t, "-c", cfg, "get")
	if !strings.Contains(errOut, `"message":"command failed"`) {
		t.Errorf("expected a command failed entry, got %s", errOut)
	}
}

func TestCLI_DocumentClass(t *testing.T) {
	cfg, _ := setup(t)
	dir := filepath.Dir(cfg)
	docs := filepath.Join(dir, "docs.json")
	raw := `[{"title": "Lazy pipelines", "body": "pull based", "tags": ["go"], "extra": 1}, {"title": "Hooks"}]`
	if err := os.WriteFile(docs, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	untitled := filepath.Join(dir, "untitled.json")
	if err := os.WriteFile(untitled, []byte(`{"body": "no title"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	prev := now
	now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	t.Cleanup(func() { now = prev })

	if out := mustRun(t, "-c", cfg, "--class", "document", "import", docs); out != "1\n2\n" {
		t.Errorf("import printed %q, want ids 1 and 2", out)
	}

	var got map[string]any
	out := mustRun(t, "-c", cfg, "--class", "document", "get", "1")
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("bad JSON %q: %v", out, err)
	}
	if got["title"] != "Lazy pipelines" || got["created_at"] != "2026-01-02T03:04:05Z" || got["updated_at"] != "2026-01-02T03:04:05Z" {
		t.Errorf("unexpected document %v", got)
	}
	if _, ok := got["extra"]; ok {
		t.Errorf("undeclared fields must be dropped, got %v", got)
	}

	code, _, errOut := run(t, "-c", cfg, "--class", "document", "import", untitled)
	if code != 1 || !strings.Contains(errOut, "title is required") {
		t.Errorf("untitled import: code=%d stderr=%q", code, errOut)
	}
	if out := mustRun(t, "-c", cfg, "count"); out != "2\n" {
		t.Errorf("count = %q", out)
	}
}

func TestCLI_UnknownClass(t *testing.T) {
	cfg, _ := setup(t)
	code, _, errOut := run(t, "-c", cfg, "--class", "invoice", "count")
	if code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	for _, want := range []string{`unknown entity class "invoice"`, "document, record"} {
		if !strings.Contains(errOut, want) {
			t.Errorf("stderr %q does not mention %q", errOut, want)
		}
	}
}

func TestCLI_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  driver: mongo\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	code, _, errOut := run(t, "-c", path, "count")
	if code != 1 || !strings.Contains(errOut, "invalid config") {
		t.Errorf("code=%d stderr=%q", code, errOut)
	}
}

func TestCLI_Version(t *testing.T) {
	// No config and no storage are needed.
	out := mustRun(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"), "version")
	if !strings.HasPrefix(out, serviceName+" ") {
		t.Errorf("version printed %q", out)
	}

	var info map[string]any
	if err := json.Unmarshal([]byte(mustRun(t, "version", "--json")), &info); err != nil {
		t.Fatal(err)
	}
	if info["version"] == "" || info["version"] == nil {
		t.Errorf("missing version in %v", info)
	}
}

func TestConfig_Defaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.Name != serviceName || c.Logging.Output != "stderr" || c.Version == "" {
		t.Errorf("unexpected defaults %+v", c.ServiceConfig)
	}
	if c.Storage.Driver != "memory" || c.Observability.ServiceName != serviceName {
		t.Errorf("unexpected sub-config defaults %+v %+v", c.Storage, c.Observability)
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}

	c.Storage.IDField = "key"
	if err := c.Validate(); err == nil {
		t.Error("expected an error for a non-default id field")
	}
}
