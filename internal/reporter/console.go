package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ConsoleReporter writes plain, uncolored text lines to an io.Writer,
// serializing concurrent calls onto one output stream under a single
// mutex. No color, banners, or box-drawing — presentation belongs to a
// richer reporter; this is the minimum that can be watched by a human
// running the CLI.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

// NewConsoleReporter builds a ConsoleReporter writing to the given
// streams. Pass nil for either to default to os.Stdout/os.Stderr.
func NewConsoleReporter(out, errOut io.Writer) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &ConsoleReporter{out: out, err: errOut}
}

func (c *ConsoleReporter) Init(suiteNames []string, runnerCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := "local"
	if runnerCount >= 0 {
		target = fmt.Sprintf("%d runner(s)", runnerCount)
	}
	fmt.Fprintf(c.out, "running %d suite(s) on %s\n", len(suiteNames), target)
}

func (c *ConsoleReporter) Log(e LogEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.Level == LevelSilent {
		return
	}
	w := c.out
	if e.Level == LevelError || e.Level == LevelWarn {
		w = c.err
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", e.Suite, strings.ToUpper(string(e.Level)), e.Description)
}

func (c *ConsoleReporter) Status(e StatusEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch e.Type {
	case "SKIP":
		fmt.Fprintf(c.out, "%s SKIP %s\n", ancestryPath(e.Ancestry), e.Description)
	case "TODO":
		fmt.Fprintf(c.out, "%s TODO %s\n", ancestryPath(e.Ancestry), e.Description)
	}
}

func (c *ConsoleReporter) Action(e ActionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mark := "PASS"
	w := c.out
	if e.Type == "FAILURE" {
		mark = "FAIL"
		w = c.err
	}
	fmt.Fprintf(w, "%s %s %s (%dms)\n", mark, ancestryPath(e.Ancestry), e.Description, e.DurationMS)
	for _, detail := range e.Errors {
		fmt.Fprintf(w, "    %s: %s\n", detail.Name, detail.Message)
	}
}

func (c *ConsoleReporter) SuiteError(e SuiteErrorEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.err, "suite error [%s]: %s\n", e.Suite, e.Message)
	for _, s := range e.Stacks {
		fmt.Fprintln(c.err, s)
	}
}

func (c *ConsoleReporter) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, "done")
}

func ancestryPath(ancestry []string) string {
	if len(ancestry) == 0 {
		return ""
	}
	return strings.Join(ancestry, " > ") + " >"
}
