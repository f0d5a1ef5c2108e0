// Package report renders run summaries and delivers them to the configured
// sinks: the console, local files, S3 and DynamoDB.
package report

import (
	"fmt"
	"os"

	"github.com/osteele/liquid"

	"github.com/ignite/pan-validator/internal/pan"
	"github.com/ignite/pan-validator/internal/pkg/logger"
)

// DefaultTemplate is used when no template file is configured.
const DefaultTemplate = `PAN validation report
run:       {{ run_id }}
source:    {{ source | default: "adhoc" }}
read:      {{ input }} ({{ duplicates }} duplicates removed)
records:   {{ total_records }}
valid:     {{ total_valid }} ({{ valid_ratio | percent }})
invalid:   {{ total_invalid }}
{% for v in verdicts %}  {{ v.label }}: {{ v.count }}
{% endfor %}{% if invalid.size > 0 %}invalid identifiers:
{% for o in invalid %}  {{ o.identifier | mask }}  {{ o.verdict }}
{% endfor %}{% endif %}`

// Renderer turns a result into text through a liquid template.
type Renderer struct {
	tpl    *liquid.Template
	detail bool
}

// NewRenderer compiles source. An empty source selects DefaultTemplate.
// With detail set the invalid identifiers are listed, masked.
func NewRenderer(source string, detail bool) (*Renderer, error) {
	if source == "" {
		source = DefaultTemplate
	}

	engine := liquid.NewEngine()
	engine.RegisterFilter("mask", func(id string) string { return logger.RedactPAN(id) })
	engine.RegisterFilter("percent", func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) })

	tpl, err := engine.ParseString(source)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Renderer{tpl: tpl, detail: detail}, nil
}

// NewRendererFromFile loads a template from path; an empty path uses the
// built-in template.
func NewRendererFromFile(path string, detail bool) (*Renderer, error) {
	if path == "" {
		return NewRenderer("", detail)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report template: %w", err)
	}
	return NewRenderer(string(data), detail)
}

// Render produces the report text for res.
func (r *Renderer) Render(res *pan.Result) (string, error) {
	out, err := r.tpl.RenderString(r.bindings(res))
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return out, nil
}

func (r *Renderer) bindings(res *pan.Result) liquid.Bindings {
	verdicts := make([]map[string]interface{}, 0, len(res.Summary.ByVerdict))
	for _, v := range pan.AllVerdicts() {
		verdicts = append(verdicts, map[string]interface{}{
			"label": string(v),
			"count": res.Summary.ByVerdict[v],
		})
	}

	invalid := []map[string]interface{}{}
	if r.detail {
		for _, o := range res.Invalid() {
			invalid = append(invalid, map[string]interface{}{
				"identifier": o.Identifier,
				"verdict":    string(o.Verdict),
			})
		}
	}

	ratio := 0.0
	if res.Summary.TotalRecords > 0 {
		ratio = float64(res.Summary.TotalValid) / float64(res.Summary.TotalRecords)
	}

	return liquid.Bindings{
		"run_id":        res.RunID.String(),
		"source":        res.Source,
		"input":         res.Dedup.Input,
		"duplicates":    res.Dedup.Duplicates,
		"total_records": res.Summary.TotalRecords,
		"total_valid":   res.Summary.TotalValid,
		"total_invalid": res.Summary.TotalInvalid,
		"valid_ratio":   ratio,
		"verdicts":      verdicts,
		"invalid":       invalid,
	}
}
