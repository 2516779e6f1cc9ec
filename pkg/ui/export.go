package ui

import (
	"html"
	"html/template"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/zoe12378/chat-DB/pkg/format"
)

const exportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>chat-DB transcript</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; color: #1f2430; }
header h1 { margin-bottom: 0.25rem; }
.generated { color: #6b7280; font-size: 0.85rem; margin-top: 0; }
.notice { text-align: center; color: #6b7280; font-style: italic; margin: 0.75rem 0; }
.message { margin: 0.75rem 0; padding: 0.5rem 0.75rem; border-radius: 0.5rem; background: #f3f4f6; }
.message.self { background: #dbeafe; }
.meta { display: flex; justify-content: space-between; font-size: 0.8rem; margin-bottom: 0.25rem; }
.sender { font-weight: 600; }
.time { color: #6b7280; }
.body pre { background: #111827; color: #e5e7eb; padding: 0.75rem; border-radius: 0.4rem; overflow-x: auto; }
.body code { font-family: ui-monospace, monospace; }
.copy-button { float: right; font-size: 0.75rem; cursor: pointer; }
</style>
</head>
<body>
<header>
<h1>chat-DB transcript</h1>
<p class="generated">exported {{.Generated}}</p>
</header>
<main class="transcript">
{{- range .Entries}}
{{- if .Notice}}
<div class="notice">{{.Text}}</div>
{{- else}}
<div class="message{{if .Self}} self{{end}}">
<div class="meta"><span class="sender">{{.Sender}}</span><span class="time">{{.Stamp}}</span></div>
<div class="body">{{.Body}}</div>
</div>
{{- end}}
{{- end}}
</main>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/highlight.js@11/styles/github-dark.min.css">
<script src="https://cdn.jsdelivr.net/npm/highlight.js@11/lib/common.min.js"></script>
<script type="module">
import mermaid from "https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.esm.min.mjs";
mermaid.initialize({ startOnLoad: true });
</script>
<script>
document.querySelectorAll(".code-block pre code").forEach((el) => hljs.highlightElement(el));
document.querySelectorAll(".copy-button").forEach((btn) => {
  btn.addEventListener("click", () => {
    navigator.clipboard.writeText(decodeURIComponent(btn.dataset.code));
  });
});
</script>
</body>
</html>
`

var exportTmpl = template.Must(template.New("export").Parse(exportTemplate))

type exportEntry struct {
	Notice bool
	Self   bool
	Sender string
	Stamp  string
	Text   string
	Body   template.HTML
}

type exportDoc struct {
	Generated string
	Entries   []exportEntry
}

// WriteHTML writes the transcript as a standalone HTML document. Bodies
// go through the full formatting pipeline, so the output carries the
// same sanitized markup, copy buttons and diagram placeholders the web
// widget produces.
func WriteHTML(w io.Writer, p *format.Pipeline, entries []Entry, now time.Time) error {
	doc := exportDoc{
		Generated: now.Format("2006-01-02 15:04"),
		Entries:   make([]exportEntry, 0, len(entries)),
	}
	for _, e := range entries {
		if e.Kind == entryNotice {
			doc.Entries = append(doc.Entries, exportEntry{Notice: true, Text: e.Body})
			continue
		}
		body := renderBody(p, e.Body)
		doc.Entries = append(doc.Entries, exportEntry{
			Self:   e.Self,
			Sender: format.SanitizeName(e.Sender),
			Stamp:  e.Stamp,
			Body:   body,
		})
	}
	if err := exportTmpl.Execute(w, doc); err != nil {
		return errors.Wrap(err, "failed to render transcript document")
	}
	return nil
}

func renderBody(p *format.Pipeline, body string) template.HTML {
	rendered, err := p.Render(body)
	if err != nil {
		return template.HTML("<p>" + html.EscapeString(body) + "</p>")
	}
	return template.HTML(rendered.HTML)
}
