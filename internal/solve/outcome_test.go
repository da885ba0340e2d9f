package solve

import "testing"

func TestOutcomeInfeasibleSet(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    bool
	}{
		{OutcomeOptimal, false},
		{OutcomeInfeasible, true},
		{OutcomeInfeasibleOrUnbounded, true},
		{OutcomeDualInfeasible, true},
		{OutcomeLocallyInfeasible, true},
		{OutcomeUnbounded, false},
		{OutcomeOther, false},
	}
	for _, tt := range tests {
		if got := tt.outcome.Infeasible(); got != tt.want {
			t.Errorf("%v.Infeasible() = %v, want %v", tt.outcome, got, tt.want)
		}
	}
}

func TestResultValue(t *testing.T) {
	r := &Result{Values: []float64{1.5, 2.5}}
	if r.Value(1) != 2.5 {
		t.Errorf("Value(1) = %v", r.Value(1))
	}
	if r.Value(5) != 0 || r.Value(-1) != 0 {
		t.Error("out-of-range columns should read as zero")
	}
	var nilRes *Result
	if nilRes.Value(0) != 0 {
		t.Error("nil result should read as zero")
	}
}
