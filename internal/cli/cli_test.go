package cli

import (
	"bytes"
	"reflect"
	"regexp"
	"testing"

	"github.com/webanalyst/corius/pkg/models"
)

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	if root == nil {
		t.Fatal("NewRootCmd returned nil")
	}
	cmds := root.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "stop", "status", "item", "database", "action", "audit", "doctor", "apikey", "nuke"} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
}

func TestNewRootCmd_hasHomeFlag(t *testing.T) {
	root := NewRootCmd("")
	f := root.PersistentFlags().Lookup("home")
	if f == nil {
		t.Fatal("expected --home persistent flag")
	}
}

func TestApikeyGenerate(t *testing.T) {
	root := NewRootCmd("")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"apikey", "generate"})
	if err := root.Execute(); err != nil {
		t.Fatalf("apikey generate: %v", err)
	}
	out := buf.String()
	hexKey := regexp.MustCompile(`(?m)^  ([a-f0-9]{64})$`)
	if !hexKey.MatchString(out) {
		t.Errorf("output should contain a 64-char hex key on its own line; got:\n%s", out)
	}
	if !regexp.MustCompile(`CORIUS_API_KEY`).MatchString(out) {
		t.Errorf("output should mention CORIUS_API_KEY")
	}
	if !regexp.MustCompile(`X-API-Key`).MatchString(out) {
		t.Errorf("output should mention X-API-Key")
	}
}

func TestDoctor_ok(t *testing.T) {
	home := t.TempDir()
	root := NewRootCmd("")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"doctor", "--home", home})
	if err := root.Execute(); err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("ok")) {
		t.Errorf("doctor output: %q", buf.String())
	}
}

func TestDoctor_seed(t *testing.T) {
	home := t.TempDir()
	root := NewRootCmd("")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"doctor", "--seed", "--home", home})
	if err := root.Execute(); err != nil {
		t.Fatalf("doctor --seed: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("seeded demo workspace")) {
		t.Errorf("doctor --seed output: %q", buf.String())
	}
}

func TestNuke_requiresExactPhrase(t *testing.T) {
	home := t.TempDir()
	root := NewRootCmd("")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetIn(bytes.NewBufferString("no thanks\n"))
	root.SetArgs([]string{"nuke", "--home", home})
	if err := root.Execute(); err != nil {
		t.Fatalf("nuke: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("Aborted.")) {
		t.Errorf("nuke without phrase should abort; output: %q", buf.String())
	}
}

func TestParseFilter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		expr    string
		want    models.Filter
		wantErr bool
	}{
		{expr: "status=Done", want: models.Filter{PropertyName: "status", Op: "equals", Value: "Done"}},
		{expr: "notes~review", want: models.Filter{PropertyName: "notes", Op: "contains", Value: "review"}},
		{expr: "due<2026-09-01", want: models.Filter{PropertyName: "due", Op: "before", Value: "2026-09-01"}},
		{expr: "due>2026-01-01", want: models.Filter{PropertyName: "due", Op: "after", Value: "2026-01-01"}},
		{expr: "due!empty", want: models.Filter{PropertyName: "due", Op: "is_not_empty"}},
		{expr: "due=empty", want: models.Filter{PropertyName: "due", Op: "is_empty"}},
		{expr: "garbage", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseFilter(tt.expr)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseFilter(%q): expected error", tt.expr)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseFilter(%q): %v", tt.expr, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseFilter(%q): got %+v, want %+v", tt.expr, got, tt.want)
		}
	}
}
