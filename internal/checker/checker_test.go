package checker_test

import (
	"testing"

	"github.com/guregu/null/v5"

	"github.com/hazz-dev/everwatch/internal/checker"
)

func TestInvalidURLConstant(t *testing.T) {
	if checker.InvalidURL != "Invalid URL" {
		t.Errorf("InvalidURL should be 'Invalid URL', got %q", checker.InvalidURL)
	}
}

func TestOutcome_LatencyDuration(t *testing.T) {
	if _, ok := (checker.Outcome{}).LatencyDuration(); ok {
		t.Error("expected no latency for zero outcome")
	}
	o := checker.Outcome{Latency: null.IntFrom(1500)}
	if d, ok := o.LatencyDuration(); !ok || d != 1500 {
		t.Errorf("expected 1500ns, got %v (ok=%v)", d, ok)
	}
}
