package validate

import (
	"time"

	"github.com/setforge/setforge/pkg/engine"
)

// typeWeights is the estimated convergence cost per resource type.
var typeWeights = map[string]time.Duration{
	engine.TypePackage:         120 * time.Second,
	engine.TypeFeatureToggle:   30 * time.Second,
	engine.TypeSetting:         5 * time.Second,
	engine.TypeTerminalSetting: 10 * time.Second,
	engine.TypeProfileSetting:  10 * time.Second,
}

// defaultWeight is the estimate for types the table does not know.
const defaultWeight = 10 * time.Second

// Impact classification thresholds.
const (
	highThreshold   = 60 * time.Second
	mediumThreshold = 15 * time.Second
)

// networkTypes and rebootTypes are the fixed membership sets driving the
// aggregate flags.
var (
	networkTypes = map[string]bool{engine.TypePackage: true}
	rebootTypes  = map[string]bool{engine.TypeFeatureToggle: true}
)

// estimateImpact sums the per-item cost estimates for the enabled items.
func estimateImpact(items []*engine.Resource) engine.PerformanceImpact {
	impact := engine.PerformanceImpact{}
	for _, item := range items {
		if !item.Enabled {
			continue
		}

		weight, known := typeWeights[item.Type]
		if !known {
			weight = defaultWeight
		}
		itemImpact := engine.ItemImpact{
			ItemName:        item.Name,
			ItemType:        item.Type,
			EstimatedTime:   weight,
			Level:           classify(weight),
			RequiresNetwork: networkTypes[item.Type],
			RequiresReboot:  rebootTypes[item.Type],
		}

		impact.Items = append(impact.Items, itemImpact)
		impact.EstimatedDuration += weight
		switch itemImpact.Level {
		case engine.ImpactHigh:
			impact.HighCount++
		case engine.ImpactMedium:
			impact.MediumCount++
		default:
			impact.LowCount++
		}
		impact.RequiresNetwork = impact.RequiresNetwork || itemImpact.RequiresNetwork
		impact.RequiresReboot = impact.RequiresReboot || itemImpact.RequiresReboot
	}
	return impact
}

func classify(estimate time.Duration) engine.ImpactLevel {
	switch {
	case estimate > highThreshold:
		return engine.ImpactHigh
	case estimate > mediumThreshold:
		return engine.ImpactMedium
	default:
		return engine.ImpactLow
	}
}
