package reporter

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleReporterAction(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewConsoleReporter(&out, &errOut)

	r.Action(ActionEvent{Ancestry: []string{"auth"}, Type: "SUCCESS", Description: "logs in", DurationMS: 12})
	if !strings.Contains(out.String(), "PASS") {
		t.Errorf("expected PASS in output, got %q", out.String())
	}

	r.Action(ActionEvent{Ancestry: []string{"auth"}, Type: "FAILURE", Description: "logs out", DurationMS: 5})
	if !strings.Contains(errOut.String(), "FAIL") {
		t.Errorf("expected FAIL in error output, got %q", errOut.String())
	}
}

func TestConsoleReporterStatus(t *testing.T) {
	var out bytes.Buffer
	r := NewConsoleReporter(&out, nil)
	r.Status(StatusEvent{Type: "SKIP", Description: "billing/charge"})
	if !strings.Contains(out.String(), "SKIP") {
		t.Errorf("expected SKIP, got %q", out.String())
	}
}
