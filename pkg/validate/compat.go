package validate

import (
	"fmt"
	"os"
	"runtime"

	"github.com/setforge/setforge/pkg/engine"
)

// Platform describes the host the configuration would be applied to.
type Platform struct {
	// OS is the operating system identifier (runtime.GOOS values).
	OS string

	// Elevated reports whether the process runs with elevated privileges.
	Elevated bool
}

// DetectPlatform inspects the current process and host.
func DetectPlatform() Platform {
	return Platform{
		OS:       runtime.GOOS,
		Elevated: os.Geteuid() == 0,
	}
}

// supportedOS is the platform floor. Anything else fails compatibility.
var supportedOS = map[string]bool{
	"linux":  true,
	"darwin": true,
}

// elevationTypes is the fixed set of resource types whose apply path needs
// elevated privileges.
var elevationTypes = map[string]bool{
	engine.TypePackage:       true,
	engine.TypeFeatureToggle: true,
}

// checkCompatibility verifies the platform floor and the privilege posture
// required by the resource types present.
func checkCompatibility(cfg *engine.Configuration, platform Platform) engine.CompatibilityResult {
	result := engine.CompatibilityResult{Compatible: true}

	if !supportedOS[platform.OS] {
		result.Compatible = false
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("unsupported operating system %q", platform.OS))
	}

	for _, item := range cfg.Items {
		if item.Enabled && elevationTypes[item.Type] {
			result.ElevationRequired = true
			break
		}
	}
	if result.ElevationRequired && !platform.Elevated {
		result.Compatible = false
		result.Reasons = append(result.Reasons,
			"configuration contains items requiring elevated privileges; re-run elevated")
	}

	return result
}
