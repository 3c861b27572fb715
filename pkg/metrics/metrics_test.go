package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetOneHot(t *testing.T) {
	all := []string{"CLOSE", "MIDRANGE", "FAR", "MISSING"}
	SetOneHot(PerceptionY, all, "MIDRANGE")

	for _, l := range all {
		want := 0.0
		if l == "MIDRANGE" {
			want = 1
		}
		if got := testutil.ToFloat64(PerceptionY.WithLabelValues(l)); got != want {
			t.Errorf("%s = %v, want %v", l, got, want)
		}
	}

	SetOneHot(PerceptionY, all, "FAR")
	if got := testutil.ToFloat64(PerceptionY.WithLabelValues("MIDRANGE")); got != 0 {
		t.Errorf("previous label not cleared: %v", got)
	}
}
