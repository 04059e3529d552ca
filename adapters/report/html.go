package report

import (
	"goparam/domain/analysis"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

const pageCSS = `body{font-family:system-ui,sans-serif;max-width:980px;margin:2rem auto;padding:0 1rem;color:#1f2933}
table{border-collapse:collapse;margin:1rem 0}th,td{border:1px solid #cbd2d9;padding:.3rem .6rem;text-align:left}
th{background:#f0f4f8}blockquote{color:#8d2b0b;margin:.2rem 0;padding-left:.8rem;border-left:3px solid #f0b429}
code{background:#f0f4f8;padding:0 .2rem}`

// HTML renders the markdown report as a standalone page
func HTML(r *analysis.Report) []byte {
	return MarkdownToHTML(Markdown(r), "Parameter analysis: "+r.Target)
}

// MarkdownToHTML converts a markdown document into a complete HTML page
func MarkdownToHTML(md, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))

	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: title,
		Head:  []byte("<style>" + pageCSS + "</style>\n"),
	})
	return markdown.Render(doc, renderer)
}
