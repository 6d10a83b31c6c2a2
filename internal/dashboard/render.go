// Package dashboard renders insights as interactive HTML dashboards built
// with go-echarts.
package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/rs/zerolog/log"
)

// headerTemplate is placed at the top of the go-echarts page body.
const headerTemplate = `<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; color: #222; background: #fafafa; }
.hs-header { margin: 24px 24px 8px; }
.hs-header h1 { margin-bottom: 4px; }
.hs-meta { color: #777; font-size: 13px; margin-bottom: 16px; }
.hs-stats { display: flex; flex-wrap: wrap; gap: 12px; margin-bottom: 12px; }
.hs-stat { background: #fff; border: 1px solid #ddd; border-radius: 6px; padding: 10px 14px; min-width: 140px; }
.hs-stat .label { color: #666; font-size: 12px; text-transform: uppercase; }
.hs-stat .value { font-size: 20px; font-weight: 600; }
.hs-notes { background: #fff4e5; border: 1px solid #f0c36d; padding: 8px 12px; margin-bottom: 12px; }
</style>
<div class="hs-header">
<h1>{{.Title}}</h1>
<div class="hs-meta">Run {{.RunID}} &middot; generated {{.Generated}}</div>
{{if .Notes}}<div class="hs-notes"><strong>Sections unavailable:</strong><ul>{{range .Notes}}<li>{{.}}</li>{{end}}</ul></div>{{end}}
{{if .Stats}}<div class="hs-stats">{{range .Stats}}<div class="hs-stat"><div class="label">{{.Label}}</div><div class="value">{{.Value}}</div></div>{{end}}</div>{{end}}
</div>
`

var header = template.Must(template.New("header").Parse(headerTemplate))

type headerView struct {
	Title     string
	RunID     string
	Generated string
	Notes     []string
	Stats     []Stat
}

// Render writes p as an HTML document: the summary header followed by one
// go-echarts chart per panel.
func Render(w io.Writer, p Page, runID string, generated time.Time) error {
	page := components.NewPage()
	page.PageTitle = p.Title
	page.SetLayout(components.PageFlexLayout)
	for _, c := range p.Charts {
		page.AddCharts(c.echart())
	}

	var body bytes.Buffer
	if err := page.Render(&body); err != nil {
		return fmt.Errorf("render %s: %w", p.File, err)
	}

	var head bytes.Buffer
	err := header.Execute(&head, headerView{
		Title:     p.Title,
		RunID:     runID,
		Generated: generated.UTC().Format("2006-01-02 15:04 MST"),
		Notes:     p.Notes,
		Stats:     p.Stats,
	})
	if err != nil {
		return fmt.Errorf("render %s header: %w", p.File, err)
	}

	if _, err := w.Write(insertAfterBody(body.Bytes(), head.Bytes())); err != nil {
		return fmt.Errorf("write %s: %w", p.File, err)
	}
	return nil
}

// insertAfterBody places fragment right after the opening body tag of doc,
// or in front of doc when it has none.
func insertAfterBody(doc, fragment []byte) []byte {
	i := bytes.Index(doc, []byte("<body"))
	if i < 0 {
		return append(fragment, doc...)
	}
	end := bytes.IndexByte(doc[i:], '>')
	if end < 0 {
		return append(fragment, doc...)
	}
	at := i + end + 1
	out := make([]byte, 0, len(doc)+len(fragment))
	out = append(out, doc[:at]...)
	out = append(out, fragment...)
	return append(out, doc[at:]...)
}

// WritePages renders every page into dir and returns the paths written.
func WritePages(dir string, pages []Page, runID string, generated time.Time) ([]string, error) {
	var paths []string
	for _, p := range pages {
		path := filepath.Join(dir, p.File)
		f, err := os.Create(path)
		if err != nil {
			return paths, fmt.Errorf("create %s: %w", path, err)
		}
		if err := Render(f, p, runID, generated); err != nil {
			f.Close()
			return paths, err
		}
		if err := f.Close(); err != nil {
			return paths, fmt.Errorf("close %s: %w", path, err)
		}
		log.Info().Str("file", path).Int("charts", len(p.Charts)).Msg("Dashboard written")
		paths = append(paths, path)
	}
	return paths, nil
}
