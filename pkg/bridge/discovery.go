package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/setforge/setforge/pkg/engine"
)

// Locator discovers user-override documents for a request kind.
type Locator interface {
	// Discover returns candidate override files for the kind, best first.
	Discover(kind RequestKind) []Candidate

	// Roots lists the directory roots being searched, for watchers.
	Roots() []string
}

// Candidate is a discovered override file with its priority score.
type Candidate struct {
	// Path is the file location.
	Path string

	// Score orders candidates; higher wins.
	Score int
}

// SearchRoot is one directory in the override search path.
type SearchRoot struct {
	// Path is the directory to scan.
	Path string

	// Weight is the location component of the candidate score. Locations
	// under the user's profile outrank machine-wide app-data locations.
	Weight int
}

// Location weights and name scores. Branded file names beat generic
// config/settings names; user-profile roots beat app-data roots.
const (
	weightDotfiles = 100
	weightUserConf = 80
	weightAppData  = 40

	scoreBranded     = 50
	scoreKindGeneric = 30
	scorePlainConfig = 10
)

// DefaultSearchRoots returns the standard prioritized search path:
// the user's dotfiles directory, the user config directory, then
// machine-wide app data.
func DefaultSearchRoots() []SearchRoot {
	var roots []SearchRoot
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots,
			SearchRoot{Path: filepath.Join(home, ".setforge"), Weight: weightDotfiles},
			SearchRoot{Path: filepath.Join(home, ".config", "setforge"), Weight: weightUserConf},
		)
	}
	roots = append(roots, SearchRoot{Path: "/etc/setforge", Weight: weightAppData})
	return roots
}

// FileLocator scans search roots for files matching the bridge naming
// conventions. Filesystem walking stays here; the bridge itself only sees
// scored candidates.
type FileLocator struct {
	roots []SearchRoot
}

// NewFileLocator creates a locator over the given roots.
func NewFileLocator(roots []SearchRoot) *FileLocator {
	return &FileLocator{roots: roots}
}

// Roots implements Locator.
func (l *FileLocator) Roots() []string {
	paths := make([]string, 0, len(l.roots))
	for _, r := range l.roots {
		paths = append(paths, r.Path)
	}
	return paths
}

// Discover implements Locator. Candidates are scored by name convention
// plus location weight and returned best first.
func (l *FileLocator) Discover(kind RequestKind) []Candidate {
	var candidates []Candidate
	for _, root := range l.roots {
		for _, name := range candidateNames(kind) {
			path := filepath.Join(root.Path, name.file)
			if info, err := os.Stat(path); err != nil || info.IsDir() {
				continue
			}
			candidates = append(candidates, Candidate{
				Path:  path,
				Score: root.Weight + name.score,
			})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

type namedCandidate struct {
	file  string
	score int
}

// candidateNames returns the file names worth probing for a kind, with
// their name-convention scores.
func candidateNames(kind RequestKind) []namedCandidate {
	plural := string(kind) + "s"
	var names []namedCandidate
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		names = append(names,
			namedCandidate{file: "setforge." + plural + ext, score: scoreBranded},
			namedCandidate{file: plural + ext, score: scoreKindGeneric},
			namedCandidate{file: "settings" + ext, score: scorePlainConfig},
			namedCandidate{file: "config" + ext, score: scorePlainConfig},
		)
	}
	return names
}

// loadOverrides reads an override document: a mapping from request key to
// payload. For plain settings/config files the kind's plural section is
// used when present.
func loadOverrides(path string, kind RequestKind) (map[string]Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewParseError(fmt.Sprintf("failed to read override %s", path), err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, engine.NewParseError(fmt.Sprintf("malformed override %s", path), err)
	}

	// A generic settings/config file nests per-kind sections.
	if section, ok := raw[string(kind)+"s"].(map[string]interface{}); ok {
		raw = section
	}

	overrides := make(map[string]Payload, len(raw))
	for key, value := range raw {
		if m, ok := value.(map[string]interface{}); ok {
			overrides[key] = Payload(m)
		}
	}
	return overrides, nil
}
