// Package markdown renders analysis reports as Markdown and HTML.
package markdown

import (
	"fmt"
	"html"
	"strings"

	gomd "github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Report is the analysis written next to a converted source file.
type Report struct {
	Identifier string
	Dialect    string
	Backend    string
	Model      string
	Body       string
}

// Markdown renders the report with a small metadata header.
func (r Report) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Analysis of %s\n\n", r.Identifier)
	fmt.Fprintf(&sb, "- Dialect: %s\n", r.Dialect)
	if r.Backend != "" {
		fmt.Fprintf(&sb, "- Backend: %s", r.Backend)
		if r.Model != "" {
			fmt.Fprintf(&sb, " (%s)", r.Model)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(strings.TrimSpace(r.Body))
	sb.WriteString("\n")
	return sb.String()
}

// HTML renders the report as a standalone HTML page.
func (r Report) HTML() string {
	return fmt.Sprintf("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Analysis of %s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(r.Identifier), ToHTML([]byte(r.Markdown())))
}

// ToHTML converts Markdown to an HTML fragment. Raw HTML in the input is
// escaped since analyses come from a model.
func ToHTML(md []byte) string {
	opts := mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank | mdhtml.SkipHTML,
	}
	renderer := mdhtml.NewRenderer(opts)
	ext := parser.CommonExtensions | parser.Attributes
	p := parser.NewWithExtensions(ext)
	doc := p.Parse(md)
	return string(gomd.Render(doc, renderer))
}
