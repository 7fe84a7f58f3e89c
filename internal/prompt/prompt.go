// Package prompt implements the confirmation gates shown before a batch
// writes to the archive or recycles originals.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// IsInteractive returns true if stdin is a terminal.
// Piped or redirected input is not interactive.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// InteractiveConfirmer asks a yes/no question on a reader/writer pair and
// keeps asking until it gets one of y, yes, n or no.
type InteractiveConfirmer struct {
	writer io.Writer

	once  sync.Once
	lines chan line
	src   *bufio.Scanner
}

type line struct {
	text string
	err  error
	eof  bool
}

// NewInteractiveConfirmer creates a confirmer reading answers from reader.
// Use os.Stdin and os.Stdout for normal operation, or buffers for testing.
func NewInteractiveConfirmer(reader io.Reader, writer io.Writer) *InteractiveConfirmer {
	return &InteractiveConfirmer{
		writer: writer,
		lines:  make(chan line),
		src:    bufio.NewScanner(reader),
	}
}

// start feeds lines from the reader. The goroutine lives as long as the
// reader stays open so a cancelled prompt does not lose the next answer.
func (c *InteractiveConfirmer) start() {
	go func() {
		for c.src.Scan() {
			c.lines <- line{text: c.src.Text()}
		}
		c.lines <- line{err: c.src.Err(), eof: true}
		close(c.lines)
	}()
}

// Confirm prints prompt and waits for an answer. End of input and a
// cancelled context both count as "no".
func (c *InteractiveConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	c.once.Do(c.start)

	for {
		fmt.Fprintf(c.writer, "\n%s (y/n): ", prompt)

		var l line
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.writer)
			return false, nil
		case l, ok = <-c.lines:
		}
		if !ok || l.eof {
			fmt.Fprintln(c.writer)
			if l.err != nil {
				return false, fmt.Errorf("error reading input: %w", l.err)
			}
			return false, nil
		}

		switch strings.TrimSpace(strings.ToLower(l.text)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintf(c.writer, "Please enter 'y' for yes or 'n' for no.\n")
		}
	}
}

// AutoConfirmer approves every gate. It backs --yes and non-interactive runs.
type AutoConfirmer struct {
	// Writer, when set, echoes each auto-approved prompt.
	Writer io.Writer
}

// Confirm approves unless ctx is already cancelled.
func (a AutoConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}
	if a.Writer != nil {
		fmt.Fprintf(a.Writer, "%s (y/n): y (auto-confirmed)\n", prompt)
	}
	return true, nil
}

// DeclineConfirmer rejects every gate. Plan-mode runs use it so nothing past
// PLAN can execute.
type DeclineConfirmer struct{}

// Confirm always returns false.
func (DeclineConfirmer) Confirm(context.Context, string) (bool, error) {
	return false, nil
}
