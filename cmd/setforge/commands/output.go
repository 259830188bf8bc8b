package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/setforge/setforge/pkg/config"
	"github.com/setforge/setforge/pkg/engine"
)

// engineConfig pairs a loaded configuration with the non-fatal merge
// warnings produced while loading it.
type engineConfig struct {
	Configuration *engine.Configuration
	Warnings      []config.Warning
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printWarnings(warnings []config.Warning) {
	for _, w := range warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func statusSymbol(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func printValidationResult(result *engine.ValidationResult) {
	fmt.Printf("Configuration: %s\n", result.ConfigurationName)
	fmt.Printf("Status:        %s\n", result.OverallStatus)
	fmt.Printf("Items:         %d valid, %d invalid, %d warnings\n",
		result.ValidCount, result.InvalidCount, result.WarningCount)
	fmt.Printf("Duration:      %s\n", result.Duration.Round(time.Millisecond))

	if len(result.Issues) > 0 {
		fmt.Println("\nIssues:")
		for _, issue := range result.Issues {
			fmt.Printf("  - %s\n", issue)
		}
	}

	if len(result.ItemResults) > 0 {
		fmt.Println("\nItem results:")
		for _, item := range result.ItemResults {
			marker := statusSymbol(item.Status != engine.ItemInvalid)
			state := "needs apply"
			if item.Satisfied {
				state = "satisfied"
			}
			fmt.Printf("  %s %-30s %-10s %-8s %s\n",
				marker, item.ItemName, item.ItemType, item.Status, state)
			for _, issue := range item.Issues {
				fmt.Printf("      %s\n", issue)
			}
		}
	}

	if result.SystemCompatible != nil {
		fmt.Printf("\nSystem compatible: %s\n", statusSymbol(result.SystemCompatible.Compatible))
		for _, reason := range result.SystemCompatible.Reasons {
			fmt.Printf("  - %s\n", reason)
		}
	}

	if len(result.Conflicts) > 0 {
		fmt.Println("\nConflicts:")
		for _, c := range result.Conflicts {
			fmt.Printf("  - %s / %s: %s\n", c.First, c.Second, c.Reason)
		}
	}

	if impact := result.PerformanceImpact; impact != nil {
		fmt.Printf("\nEstimated apply time: %s (%d high, %d medium, %d low)\n",
			impact.EstimatedDuration.Round(time.Second),
			impact.HighCount, impact.MediumCount, impact.LowCount)
		if impact.RequiresNetwork {
			fmt.Println("  requires network access")
		}
		if impact.RequiresReboot {
			fmt.Println("  may require a restart")
		}
	}

	if len(result.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, rec := range result.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
}

func printExecutionResult(result *engine.ExecutionResult) {
	mode := "apply"
	if result.DryRun {
		mode = "dry-run"
	}
	fmt.Printf("Run:           %s (%s)\n", result.RunID, mode)
	fmt.Printf("Configuration: %s\n", result.ConfigurationName)
	fmt.Printf("Items:         %d succeeded, %d failed\n", result.Succeeded, result.Failed)
	fmt.Printf("Duration:      %s\n", result.Duration.Round(time.Millisecond))
	if result.RestartRequired {
		fmt.Println("Restart:       required")
	}

	if len(result.Items) > 0 {
		fmt.Println("\nItem results:")
		for _, item := range result.Items {
			fmt.Printf("  %s %-30s %-10s %s\n",
				statusSymbol(item.Success), item.ItemName, item.ItemType, item.Message)
		}
	}
}

func printRunList(runs []engine.RunRecord) {
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}
	fmt.Printf("%-36s  %-24s  %-8s  %-9s  %s\n", "RUN ID", "CONFIGURATION", "MODE", "RESULT", "STARTED")
	for _, run := range runs {
		mode := "apply"
		if run.DryRun {
			mode = "dry-run"
		}
		fmt.Printf("%-36s  %-24s  %-8s  %d/%d ok    %s\n",
			run.RunID, truncate(run.ConfigurationName, 24), mode,
			run.Succeeded, run.Succeeded+run.Failed,
			run.StartedAt.Format(time.RFC3339))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// normalizeTypes lowercases and de-blanks a type filter list from flags.
func normalizeTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
