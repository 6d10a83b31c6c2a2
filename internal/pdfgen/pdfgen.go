// Package pdfgen converts the Markdown report to PDF with pandoc, or to a
// print-ready HTML page when pandoc is unavailable or fails.
package pdfgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

type Options struct {
	Pandoc string
	Engine string
}

// Result reports which file was produced. Printable is set when the HTML
// fallback was written instead of a PDF.
type Result struct {
	Path      string
	Printable bool
}

// Convert renders mdPath to pdfPath. When pandoc cannot produce the PDF the
// report is written as <pdf name>_PRINTABLE.html next to pdfPath.
func Convert(ctx context.Context, mdPath, pdfPath string, opts Options) (Result, error) {
	src, err := os.ReadFile(mdPath)
	if err != nil {
		return Result{}, fmt.Errorf("read report: %w", err)
	}

	err = runPandoc(ctx, mdPath, pdfPath, opts)
	if err == nil {
		log.Info().Str("file", pdfPath).Str("engine", opts.Engine).Msg("PDF generated with pandoc")
		return Result{Path: pdfPath}, nil
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	log.Warn().Err(err).Msg("pandoc unavailable, writing printable HTML instead")

	out := PrintablePath(pdfPath)
	f, err := os.Create(out)
	if err != nil {
		return Result{}, fmt.Errorf("create %s: %w", out, err)
	}
	title := strings.TrimSuffix(filepath.Base(mdPath), filepath.Ext(mdPath))
	if err := RenderHTML(f, title, src); err != nil {
		f.Close()
		return Result{}, err
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("close %s: %w", out, err)
	}
	log.Info().Str("file", out).Msg("Printable HTML written; print it to PDF from a browser")
	return Result{Path: out, Printable: true}, nil
}

// PrintablePath is the fallback file name for pdfPath.
func PrintablePath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + "_PRINTABLE.html"
}

func runPandoc(ctx context.Context, mdPath, pdfPath string, opts Options) error {
	bin := opts.Pandoc
	if bin == "" {
		bin = "pandoc"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return err
	}
	engine := opts.Engine
	if engine == "" {
		engine = "xelatex"
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path,
		mdPath,
		"-o", pdfPath,
		"--pdf-engine="+engine,
		"-V", "geometry:margin=2cm",
		"-V", "fontsize=11pt",
		"-V", "colorlinks=true",
		"--toc",
		"--toc-depth=3",
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("pandoc exited with %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("run pandoc: %w", err)
	}
	return nil
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

var printable = template.Must(template.New("printable").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Georgia, "Times New Roman", serif; max-width: 900px; margin: 40px auto; padding: 0 20px; line-height: 1.6; color: #333; }
h1 { color: #2c3e50; border-bottom: 3px solid #3498db; padding-bottom: 10px; }
h2 { color: #34495e; border-bottom: 2px solid #95a5a6; padding-bottom: 6px; margin-top: 30px; page-break-after: avoid; }
h3 { color: #555; page-break-after: avoid; }
code { font-family: "Courier New", monospace; background: #f4f4f4; padding: 2px 4px; border-radius: 3px; }
pre { background: #f8f8f8; border: 1px solid #ddd; border-radius: 5px; padding: 15px; overflow-x: auto; page-break-inside: avoid; }
table { border-collapse: collapse; width: 100%; margin: 15px 0; page-break-inside: avoid; }
th { background: #3498db; color: #fff; padding: 8px; text-align: left; }
td { border: 1px solid #ddd; padding: 6px 8px; }
tr:nth-child(even) { background: #f9f9f9; }
@media print {
  body { font-size: 10pt; margin: 0; }
  .no-print { display: none; }
}
</style>
</head>
<body>
{{.Body}}
<div class="no-print" style="position: fixed; bottom: 20px; right: 20px; background: #3498db; color: #fff; padding: 10px 20px; border-radius: 5px;">Press Ctrl+P (Cmd+P on Mac) to save as PDF</div>
</body>
</html>
`))

// RenderHTML converts Markdown src to a styled standalone HTML page.
func RenderHTML(w io.Writer, title string, src []byte) error {
	var body bytes.Buffer
	if err := md.Convert(src, &body); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}
	// goldmark omits raw HTML from the source unless WithUnsafe is set.
	err := printable.Execute(w, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(body.String())})
	if err != nil {
		return fmt.Errorf("render printable html: %w", err)
	}
	return nil
}
