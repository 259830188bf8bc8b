package validate

import (
	"fmt"

	"github.com/setforge/setforge/pkg/engine"
)

// recommendations derives deterministic follow-ups from a computed result.
// The same result always yields the same recommendations, in the same order.
func recommendations(result *engine.ValidationResult) []string {
	var recs []string

	if result.InvalidCount > 0 {
		recs = append(recs, fmt.Sprintf("fix %d invalid item(s) before applying", result.InvalidCount))
	}
	if result.SystemCompatible != nil && result.SystemCompatible.ElevationRequired {
		recs = append(recs, "run the apply step with elevated privileges")
	}
	if len(result.Conflicts) > 0 {
		recs = append(recs, fmt.Sprintf("resolve %d conflict(s) by removing one side of each pair", len(result.Conflicts)))
	}
	if result.PerformanceImpact != nil {
		if result.PerformanceImpact.HighCount > 0 {
			recs = append(recs, fmt.Sprintf("expect a long run: %d high-impact item(s), estimated %s total",
				result.PerformanceImpact.HighCount, result.PerformanceImpact.EstimatedDuration))
		}
		if result.PerformanceImpact.RequiresReboot {
			recs = append(recs, "plan for a restart after applying")
		}
		if result.PerformanceImpact.RequiresNetwork {
			recs = append(recs, "ensure network connectivity before applying")
		}
	}

	if result.InvalidCount == 0 && len(result.ItemResults) > 0 {
		allSatisfied := true
		for _, item := range result.ItemResults {
			if !item.Satisfied {
				allSatisfied = false
				break
			}
		}
		if allSatisfied {
			recs = append(recs, "all items already satisfied; applying would be a no-op")
		}
	}
	return recs
}
