package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"fragmenter/internal/config"
)

// Requirement defines an external command or file the worker relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// File marks Command as a path that must exist rather than a binary on PATH.
	File bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Summary renders the status for a result line.
func (s Status) Summary() string {
	if s.Available {
		return s.Command
	}
	return s.Detail
}

// WorkerRequirements lists the worker binary and any script file named in
// its arguments.
func WorkerRequirements(cfg config.Worker) []Requirement {
	reqs := []Requirement{{
		Name:        "Worker binary",
		Command:     cfg.Binary,
		Description: "Converts IFC inputs into fragments",
	}}
	for _, arg := range cfg.Args {
		if !looksLikeScript(arg) {
			continue
		}
		path := arg
		if !filepath.IsAbs(path) && cfg.WorkDir != "" {
			path = filepath.Join(cfg.WorkDir, path)
		}
		reqs = append(reqs, Requirement{
			Name:        "Worker script",
			Command:     path,
			Description: "Script passed to the worker binary",
			File:        true,
		})
	}
	return reqs
}

func looksLikeScript(arg string) bool {
	if strings.HasPrefix(arg, "-") || strings.Contains(arg, "{") {
		return false
	}
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".js", ".mjs", ".cjs", ".py", ".sh":
		return true
	}
	return false
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		case req.File:
			if info, err := os.Stat(cmd); err != nil || info.IsDir() {
				status.Detail = fmt.Sprintf("file %q not found", cmd)
			} else {
				status.Available = true
			}
		default:
			if _, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}
