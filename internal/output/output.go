// Package output handles console output for memarchive: styled status
// lines, verbose messages and per-phase progress bars.
package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Config holds output configuration.
type Config struct {
	Verbose   bool      // Enable verbose output
	Writer    io.Writer // Output destination (default: os.Stdout)
	ErrWriter io.Writer // Error output destination (default: os.Stderr)
	IsTTY     bool      // Styles and progress bars only render on a terminal
}

// Output writes user-facing lines. It also implements the orchestrator's
// progress hooks.
type Output struct {
	config Config

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// New creates a new Output instance with the given configuration.
func New(config Config) *Output {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.ErrWriter == nil {
		config.ErrWriter = os.Stderr
	}
	return &Output{config: config}
}

// DefaultConfig returns a Config for stdout/stderr with TTY detection.
func DefaultConfig() Config {
	return Config{
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		IsTTY:     term.IsTerminal(int(os.Stdout.Fd())),
	}
}

func (o *Output) style(s lipgloss.Style, msg string) string {
	if !o.config.IsTTY {
		return msg
	}
	return s.Render(msg)
}

func (o *Output) print(w io.Writer, s *lipgloss.Style, prefix, format string, args ...interface{}) {
	o.clearProgressLine()
	msg := strings.TrimSuffix(fmt.Sprintf(format, args...), "\n")
	if prefix != "" {
		msg = prefix + " " + msg
	}
	if s != nil {
		msg = o.style(*s, msg)
	}
	fmt.Fprintln(w, msg)
}

// Verbose prints a message only when verbose mode is enabled.
func (o *Output) Verbose(format string, args ...interface{}) {
	if !o.config.Verbose {
		return
	}
	o.print(o.config.Writer, &SubtleStyle, "", format, args...)
}

// Header prints a section heading.
func (o *Output) Header(format string, args ...interface{}) {
	o.clearProgressLine()
	title := fmt.Sprintf(format, args...)
	fmt.Fprintln(o.config.Writer)
	fmt.Fprintln(o.config.Writer, o.style(HeaderStyle, "== "+title+" =="))
}

// Info prints an informational message (always shown).
func (o *Output) Info(format string, args ...interface{}) {
	o.print(o.config.Writer, &InfoStyle, "", format, args...)
}

// Success prints a success line.
func (o *Output) Success(format string, args ...interface{}) {
	o.print(o.config.Writer, &SuccessStyle, "OK", format, args...)
}

// Warning prints a warning line.
func (o *Output) Warning(format string, args ...interface{}) {
	o.print(o.config.Writer, &WarningStyle, "WARNING:", format, args...)
}

// Error prints an error message to the error writer.
func (o *Output) Error(format string, args ...interface{}) {
	o.print(o.config.ErrWriter, &ErrorStyle, "ERROR:", format, args...)
}

// Plain prints text without styling, e.g. rendered reports or JSON.
func (o *Output) Plain(text string) {
	o.clearProgressLine()
	fmt.Fprint(o.config.Writer, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(o.config.Writer)
	}
}

// Writer returns the standard writer.
func (o *Output) Writer() io.Writer {
	return o.config.Writer
}

// clearProgressLine blanks the active progress bar line before other output.
func (o *Output) clearProgressLine() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bar != nil {
		if err := o.bar.Clear(); err != nil {
			slog.Debug("failed to clear progress bar", "error", err)
		}
	}
}

// Begin starts a progress bar for a batch phase. Bars are suppressed when
// output is not a terminal or verbose mode is on.
func (o *Output) Begin(phase string, total int) {
	if !o.config.IsTTY || o.config.Verbose || total == 0 {
		o.Verbose("%s: %d operations", phase, total)
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(o.config.Writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan][bold]%s[reset]", strings.ToLower(phase))),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionClearOnFinish(),
	)
}

// Step advances the current progress bar.
func (o *Output) Step() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bar == nil {
		return
	}
	if err := o.bar.Add(1); err != nil {
		slog.Debug("failed to update progress bar", "error", err)
	}
}

// End finishes the current progress bar.
func (o *Output) End() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bar == nil {
		return
	}
	if err := o.bar.Finish(); err != nil {
		slog.Debug("failed to finish progress bar", "error", err)
	}
	o.bar = nil
}

// IsVerbose returns whether verbose mode is enabled.
func (o *Output) IsVerbose() bool {
	return o.config.Verbose
}

// IsTTY returns whether the output is a terminal.
func (o *Output) IsTTY() bool {
	return o.config.IsTTY
}
