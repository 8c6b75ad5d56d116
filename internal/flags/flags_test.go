package flags

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "observar.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestObservarStoreBool(t *testing.T) {
	log := zap.NewNop().Sugar()
	cases := []struct {
		name    string
		content string
		key     string
		def     bool
		want    bool
	}{
		{"true value", `{"reles_consultar": true}`, "reles_consultar", false, true},
		{"false value", `{"reles_consultar": false}`, "reles_consultar", true, false},
		{"numeric truthy", `{"reles_consultar": 1}`, "reles_consultar", false, true},
		{"numeric zero", `{"reles_consultar": 0}`, "reles_consultar", true, false},
		{"missing key uses default", `{"otro": true}`, "reles_consultar", true, true},
		{"wrong type uses default", `{"reles_consultar": "si"}`, "reles_consultar", false, false},
		{"broken json uses default", `{not json`, "reles_consultar", true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewObservarStore(writeFile(t, tc.content), log)
			if got := s.Bool(tc.key, tc.def); got != tc.want {
				t.Errorf("Bool(%q, %v) = %v, want %v", tc.key, tc.def, got, tc.want)
			}
		})
	}
}

func TestObservingEnabledFailsSafeOnMissingFile(t *testing.T) {
	s := NewObservarStore(filepath.Join(t.TempDir(), "missing.json"), zap.NewNop().Sugar())
	if s.ObservingEnabled() {
		t.Fatal("ObservingEnabled = true with no flag file, want false")
	}
}

func TestObservarStoreSeesLiveEdits(t *testing.T) {
	path := writeFile(t, `{"reles_consultar": false}`)
	s := NewObservarStore(path, zap.NewNop().Sugar())
	if s.ObservingEnabled() {
		t.Fatal("ObservingEnabled = true, want false before the edit")
	}
	if err := os.WriteFile(path, []byte(`{"reles_consultar": true}`), 0o644); err != nil {
		t.Fatalf("rewrite flag file: %v", err)
	}
	if !s.ObservingEnabled() {
		t.Fatal("ObservingEnabled = false after the file flipped to true")
	}
}

func TestLoadExclusions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excluidos.txt")
	content := "12\n\n# comentario\n7\nno-numerico\n12\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write exclusions: %v", err)
	}
	excluded := LoadExclusions(path, zap.NewNop().Sugar())
	if len(excluded) != 2 {
		t.Fatalf("excluded = %v, want exactly ids 12 and 7", excluded)
	}
	if !excluded[12] || !excluded[7] {
		t.Errorf("excluded = %v, want 12 and 7", excluded)
	}
}

func TestLoadExclusionsMissingFile(t *testing.T) {
	excluded := LoadExclusions(filepath.Join(t.TempDir(), "none.txt"), zap.NewNop().Sugar())
	if len(excluded) != 0 {
		t.Fatalf("excluded = %v, want empty set for a missing file", excluded)
	}
}
