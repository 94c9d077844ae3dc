package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// JobRequest describes one job to submit.
type JobRequest struct {
	Name       string
	Command    string
	WorkDir    string
	Cores      int
	MemoryGB   int
	Host       string
	ScriptPath string
	StdoutPath string
	StderrPath string
	// Template is a job script body with %KEY% placeholders. Empty selects
	// the built-in script.
	Template string
}

const defaultScriptTemplate = `#!/usr/bin/env bash
#poreduck job %JOB_NAME%
set -eo pipefail
cd "%WORKING_DIRECTORY%"
%COMMAND%
`

var placeholderPattern = regexp.MustCompile(`%([A-Z_]+)%`)

// Placeholders returns the substitution values for a request.
func (r JobRequest) Placeholders() map[string]string {
	values := map[string]string{
		"JOB_NAME":          r.Name,
		"COMMAND":           r.Command,
		"WORKING_DIRECTORY": r.WorkDir,
		"STDOUT":            r.StdoutPath,
		"STDERR":            r.StderrPath,
		"HOSTNAME":          r.Host,
	}
	if r.MemoryGB > 0 {
		values["MEM"] = strconv.Itoa(r.MemoryGB)
	} else {
		values["MEM"] = ""
	}
	if r.Cores > 0 {
		values["THREADS"] = strconv.Itoa(r.Cores)
	} else {
		values["THREADS"] = ""
	}
	return values
}

// RenderTemplate substitutes %KEY% placeholders. A line that references a
// known key with an empty value is dropped, so optional directives such as a
// host constraint disappear when unset. Unknown keys are left untouched.
func RenderTemplate(tmpl string, values map[string]string) string {
	lines := strings.SplitAfter(tmpl, "\n")
	var b strings.Builder
	for _, line := range lines {
		drop := false
		rendered := placeholderPattern.ReplaceAllStringFunc(line, func(match string) string {
			key := match[1 : len(match)-1]
			value, ok := values[key]
			if !ok {
				return match
			}
			if value == "" {
				drop = true
			}
			return value
		})
		if !drop {
			b.WriteString(rendered)
		}
	}
	return b.String()
}

// WriteScript renders the request into its script path.
func WriteScript(req JobRequest) error {
	if req.ScriptPath == "" {
		return fmt.Errorf("job %s: script path required", req.Name)
	}
	tmpl := req.Template
	if strings.TrimSpace(tmpl) == "" {
		tmpl = defaultScriptTemplate
	}
	if err := os.MkdirAll(filepath.Dir(req.ScriptPath), 0o755); err != nil {
		return fmt.Errorf("create submission directory: %w", err)
	}
	if err := os.WriteFile(req.ScriptPath, []byte(RenderTemplate(tmpl, req.Placeholders())), 0o755); err != nil {
		return fmt.Errorf("write job script: %w", err)
	}
	return nil
}
