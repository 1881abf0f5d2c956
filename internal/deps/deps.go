// Package deps reports whether the external tools vidfinder shells out to are
// installed.
package deps

import (
	"os/exec"
	"strings"
)

// Requirement names an external binary. Command may be a bare name resolved
// through PATH or an absolute path.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of resolving one Requirement.
type Status struct {
	Name        string `json:"name" yaml:"name"`
	Command     string `json:"command" yaml:"command"`
	Description string `json:"description" yaml:"description"`
	Optional    bool   `json:"optional" yaml:"optional"`
	Available   bool   `json:"available" yaml:"available"`
	Resolved    string `json:"resolved,omitempty" yaml:"resolved,omitempty"`
	Detail      string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Check resolves the requirement's command.
func (r Requirement) Check() Status {
	s := Status{
		Name:        r.Name,
		Command:     strings.TrimSpace(r.Command),
		Description: strings.TrimSpace(r.Description),
		Optional:    r.Optional,
	}
	if s.Command == "" {
		s.Detail = "command not configured"
		return s
	}
	path, err := exec.LookPath(s.Command)
	if err != nil {
		s.Detail = "binary " + `"` + s.Command + `"` + " not found"
		return s
	}
	s.Available, s.Resolved = true, path
	return s
}

// CheckBinaries resolves every requirement, preserving order.
func CheckBinaries(requirements []Requirement) []Status {
	out := make([]Status, len(requirements))
	for i, r := range requirements {
		out[i] = r.Check()
	}
	return out
}

// Missing filters statuses down to unavailable, non-optional entries.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if s.Optional || s.Available {
			continue
		}
		out = append(out, s)
	}
	return out
}
