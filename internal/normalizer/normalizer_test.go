package normalizer

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestStripVersion(t *testing.T) {
	tests := []struct {
		stem string
		want string
	}{
		{"activeContext_v1.2", "activeContext"},
		{"progress_v3", "progress"},
		{"session_notes_v2.10.1", "session_notes"},
		{"projectbrief", "projectbrief"},
		{"release_vx", "release_vx"},
		{"v1.0", "v1.0"},
	}

	for _, tt := range tests {
		if got := StripVersion(tt.stem); got != tt.want {
			t.Errorf("StripVersion(%q) = %q, want %q", tt.stem, got, tt.want)
		}
	}
}

func TestBaseName(t *testing.T) {
	if got := BaseName("/bank/core/active/techContext_v2.1.md"); got != "techContext" {
		t.Errorf("BaseName = %q, want techContext", got)
	}
}

func TestParseVersion(t *testing.T) {
	v, ok := ParseVersion("notes_v2.7")
	if !ok {
		t.Fatal("expected version to parse")
	}
	if v.Major != 2 || v.Minor != 7 {
		t.Errorf("got %+v, want 2.7", v)
	}

	if _, ok := ParseVersion("notes"); ok {
		t.Error("expected no version for bare stem")
	}
}

func TestVersionedName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"activeContext.md", "activeContext_v1.0.md"},
		{"activeContext_v1.0.md", "activeContext_v1.1.md"},
		{"dir/progress_v2.9.md", "progress_v2.10.md"},
		{"progress_v3.md", "progress_v3.1.md"},
	}

	for _, tt := range tests {
		if got := VersionedName(tt.path); got != tt.want {
			t.Errorf("VersionedName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestStripVersionIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("stripping twice equals stripping once", prop.ForAll(
		func(base string, major, minor int) bool {
			stem := fmt.Sprintf("%s_v%d.%d", base, major, minor)
			once := StripVersion(stem)
			return StripVersion(once) == once && once == StripVersion(base)
		},
		gen.AlphaString(),
		gen.IntRange(0, 99),
		gen.IntRange(0, 99),
	))

	properties.TestingRun(t)
}
