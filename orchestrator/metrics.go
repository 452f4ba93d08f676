package orchestrator

import (
	"github.com/hashicorp/go-metrics"
)

var (
	metricClaimsSubmitted = []string{"orchestrator", "claims", "submitted"}
	metricClaimsDuplicate = []string{"orchestrator", "claims", "duplicate"}
	metricNonceGaps       = []string{"orchestrator", "claims", "gap"}
	metricFaults          = []string{"orchestrator", "faults"}
	metricLastEventNonce  = []string{"orchestrator", "event_nonce", "last"}
	metricConfirmsSigned  = []string{"orchestrator", "confirms", "signed"}
	metricBatchRequests   = []string{"orchestrator", "batches", "requested"}
	metricRelayed         = []string{"orchestrator", "relayed"}
	metricLastRelayed     = []string{"orchestrator", "relayed", "nonce"}
	metricDirectionErrors = []string{"orchestrator", "direction", "errors"}
)

func labels(kv ...string) []metrics.Label {
	out := make([]metrics.Label, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, metrics.Label{Name: kv[i], Value: kv[i+1]})
	}
	return out
}

func countFault(kind string) {
	metrics.IncrCounterWithLabels(metricFaults, 1, labels("kind", kind))
}
