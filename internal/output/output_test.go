package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func plainOutput(verbose bool) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return New(Config{Verbose: verbose, Writer: &stdout, ErrWriter: &stderr}), &stdout, &stderr
}

func TestVerboseOutputOnlyAppearsWhenEnabled(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		expectEmpty bool
	}{
		{"verbose disabled - no output", false, true},
		{"verbose enabled - has output", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, buf, _ := plainOutput(tt.verbose)

			out.Verbose("test message")

			if tt.expectEmpty && buf.Len() > 0 {
				t.Errorf("expected no output when verbose disabled, got: %q", buf.String())
			}
			if !tt.expectEmpty && !strings.Contains(buf.String(), "test message") {
				t.Errorf("expected output to contain 'test message', got: %q", buf.String())
			}
		})
	}
}

func TestStatusLines(t *testing.T) {
	out, stdout, stderr := plainOutput(false)

	out.Info("planned %d operations", 3)
	out.Success("copied %s", "progress_v1.md")
	out.Warning("no active version of %s", "techContext")
	out.Error("recycle failed")

	want := "planned 3 operations\n" +
		"OK copied progress_v1.md\n" +
		"WARNING: no active version of techContext\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
	if stderr.String() != "ERROR: recycle failed\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestHeaderAndPlain(t *testing.T) {
	out, stdout, _ := plainOutput(false)

	out.Header("Plan")
	out.Plain("# Report")

	if stdout.String() != "\n== Plan ==\n# Report\n" {
		t.Errorf("unexpected output: %q", stdout.String())
	}
}

func TestNoDoubleNewline(t *testing.T) {
	out, stdout, _ := plainOutput(false)
	out.Info("line\n")
	if stdout.String() != "line\n" {
		t.Errorf("expected single newline, got %q", stdout.String())
	}
}

func TestProgressSuppressedWhenNotTTY(t *testing.T) {
	out, buf, _ := plainOutput(false)

	out.Begin("COPY", 10)
	out.Step()
	out.End()

	if buf.Len() > 0 {
		t.Errorf("expected no progress output when not TTY, got: %q", buf.String())
	}
}

func TestProgressVerboseFallback(t *testing.T) {
	var buf bytes.Buffer
	out := New(Config{Verbose: true, Writer: &buf, IsTTY: true})

	out.Begin("RECYCLE", 4)
	out.Step()
	out.End()

	if buf.String() != "RECYCLE: 4 operations\n" {
		t.Errorf("unexpected verbose progress output: %q", buf.String())
	}
}

func TestProgressBarOnTTY(t *testing.T) {
	var buf bytes.Buffer
	out := New(Config{Writer: &buf, IsTTY: true})

	out.Begin("COPY", 3)
	for i := 0; i < 3; i++ {
		out.Step()
	}

	if !strings.Contains(buf.String(), "copy") {
		t.Errorf("expected phase description in progress output, got: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "\r") {
		t.Errorf("expected in-place updates, got: %q", buf.String())
	}

	out.End()
	out.Step() // no bar: must not panic
}

func TestStepWithoutBegin(t *testing.T) {
	out, buf, _ := plainOutput(false)
	out.Step()
	out.End()
	if buf.Len() > 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestIsVerboseAndIsTTY(t *testing.T) {
	out := New(Config{Verbose: true, IsTTY: true})
	if !out.IsVerbose() || !out.IsTTY() {
		t.Error("expected verbose TTY output")
	}
	out = New(Config{})
	if out.IsVerbose() || out.IsTTY() {
		t.Error("expected plain output")
	}
}

// Plain output never carries escape sequences, whatever the message.
func TestPlainOutputHasNoEscapes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("non-TTY lines are the message plus prefix", prop.ForAll(
		func(msg string) bool {
			out, stdout, _ := plainOutput(false)
			out.Warning("%s", msg)
			line := stdout.String()
			return !strings.Contains(line, "\x1b[") &&
				line == "WARNING: "+strings.TrimSuffix(msg, "\n")+"\n"
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
