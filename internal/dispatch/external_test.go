package dispatch

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xjet-run/engine/internal/dispatch/runner"
	"github.com/xjet-run/engine/pkg/artifact"
)

func TestExternalTargetExecuteSuitesAcrossOneRunner(t *testing.T) {
	srv := runner.NewServer("runner-1")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	rep := &recordingReporter{}
	target := NewExternalTarget(rep, []RunnerConfig{
		{ID: "runner-1", Address: ts.URL, Concurrency: 2, DispatchTimeout: 2 * time.Second, ConnectTimeout: 2 * time.Second},
	})

	ctx := context.Background()
	if err := target.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer target.Shutdown(ctx)

	artifacts := map[string]artifact.SpecArtifact{
		"suite-a": {SuiteID: "suite-a", Code: passingSuite},
	}

	done := make(chan error, 1)
	go func() { done <- target.ExecuteSuites(ctx, artifacts, false) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ExecuteSuites: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("ExecuteSuites never returned")
	}

	a, ok := rep.rootAction()
	if !ok {
		t.Fatal("expected a root describe action from the runner")
	}
	if a.Type != "SUCCESS" {
		t.Fatalf("root action type = %s, want SUCCESS", a.Type)
	}
}

func TestExternalTargetNoAvailableRunnersReportsSuiteError(t *testing.T) {
	rep := &recordingReporter{}
	target := NewExternalTarget(rep, []RunnerConfig{
		{ID: "runner-down", Address: "http://127.0.0.1:0", Concurrency: 1, DispatchTimeout: 50 * time.Millisecond, ConnectTimeout: 50 * time.Millisecond},
	})

	ctx := context.Background()
	_ = target.Init(ctx) // the single runner's connect fails, marking it down
	defer target.Shutdown(ctx)

	artifacts := map[string]artifact.SpecArtifact{
		"suite-a": {SuiteID: "suite-a", Code: passingSuite},
	}

	done := make(chan error, 1)
	go func() { done <- target.ExecuteSuites(ctx, artifacts, false) }()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("ExecuteSuites never returned after its only runner went down")
	}

	rep.mu.Lock()
	n := len(rep.errors)
	rep.mu.Unlock()
	if n == 0 {
		t.Fatal("expected at least one SuiteError reported for the unavailable runner")
	}
}
