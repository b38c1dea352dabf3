// Package jobfile renders batch job scripts for the scheduler from templates
// and writes them out as submission artifacts.
package jobfile

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

//go:embed templates/*.tmpl
var templates embed.FS

// Params carries everything a job template can reference. Resource directives
// come from configuration and are the same for every job in a run; only the
// scenario fields vary per row.
type Params struct {
	Name      string
	Partition string
	NTasks    int
	TimeLimit string
	Mem       string
	LogDir    string
	Setup     []string

	LicenseEnv  string
	LicenseFile string

	Interpreter string
	Script      string

	Target  string
	Profile string
	Vessel  string
	Tariff  string

	// WarmStart points at a prior solution file. Refinement templates only.
	WarmStart string
}

// Renderer renders job scripts from the embedded templates. A custom template
// file can replace the embedded job template for sites with non-standard
// scheduler preludes.
type Renderer struct {
	job    *template.Template
	refine *template.Template
}

// NewRenderer parses the embedded templates. When customPath is non-empty the
// job template is read from that file instead.
func NewRenderer(customPath string) (*Renderer, error) {
	refine, err := template.ParseFS(templates, "templates/refine.sh.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse refine template: %w", err)
	}

	var job *template.Template
	if customPath != "" {
		job, err = template.ParseFiles(customPath)
		if err != nil {
			return nil, fmt.Errorf("parse custom template %s: %w", customPath, err)
		}
	} else {
		job, err = template.ParseFS(templates, "templates/job.sh.tmpl")
		if err != nil {
			return nil, fmt.Errorf("parse job template: %w", err)
		}
	}
	return &Renderer{job: job, refine: refine}, nil
}

// RenderJob produces the batch script for one scenario.
func (r *Renderer) RenderJob(p Params) ([]byte, error) {
	return render(r.job, p)
}

// RenderRefine produces the warm-start refinement script for a completed
// solution.
func (r *Renderer) RenderRefine(p Params) ([]byte, error) {
	return render(r.refine, p)
}

func render(t *template.Template, p Params) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render %s: %w", p.Name, err)
	}
	return buf.Bytes(), nil
}

// WriteArtifact writes a rendered script into dir as <name>.<ext>, creating
// the directory when needed, and returns the artifact path. An existing
// artifact with the same name is overwritten.
func WriteArtifact(dir, name, ext string, content []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name+"."+ext)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}
