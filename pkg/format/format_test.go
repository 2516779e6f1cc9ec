package format

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func TestRenderStripsScriptNodes(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("hello <script>alert(1)</script> world")
	require.NoError(t, err)
	require.NotContains(t, out.HTML, "<script")
	require.NotContains(t, out.HTML, "onerror")
}

func TestRenderKeepsBenignHTML(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("hello <b>friend</b>")
	require.NoError(t, err)
	require.Contains(t, out.HTML, "<b>friend</b>")
}

func TestRenderStripsUnsafeLinks(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("[click](javascript:alert(1))")
	require.NoError(t, err)
	require.NotContains(t, out.HTML, "javascript:")
}

func TestRenderMarkdownBasics(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("**bold** and _em_")
	require.NoError(t, err)
	require.Contains(t, out.HTML, "<strong>bold</strong>")
	require.Contains(t, out.HTML, "<em>em</em>")
}

func TestRenderHardWraps(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("line one\nline two")
	require.NoError(t, err)
	require.Contains(t, out.HTML, "<br")
}

func TestRenderEmojiShortcode(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("hi :smile:")
	require.NoError(t, err)
	require.NotContains(t, out.HTML, ":smile:")
	require.Contains(t, out.HTML, "😄")
}

func TestDiagramFenceBecomesDiagramContainer(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("```mermaid\ngraph TD;\nA-->B;\n```")
	require.NoError(t, err)

	require.Equal(t, 1, strings.Count(out.HTML, `"diagram-block"`))
	require.Equal(t, 0, strings.Count(out.HTML, `"code-block"`))
	require.Contains(t, out.HTML, `class="mermaid"`)

	require.Len(t, out.Blocks, 1)
	b := out.Blocks[0]
	require.Equal(t, BlockDiagram, b.Kind)
	require.Equal(t, "mermaid", b.Lang)
	require.Equal(t, "graph TD;\nA-->B;\n", b.Source)
}

func TestCodeFenceBecomesCodeContainer(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("```go\nfunc main() {}\n```")
	require.NoError(t, err)

	require.Equal(t, 1, strings.Count(out.HTML, `"code-block"`))
	require.Equal(t, 0, strings.Count(out.HTML, `"diagram-block"`))
	require.Contains(t, out.HTML, `class="language-go"`)

	require.Len(t, out.Blocks, 1)
	b := out.Blocks[0]
	require.Equal(t, BlockCode, b.Kind)
	require.Equal(t, "go", b.Lang)
	require.Equal(t, "func main() {}\n", b.Source)
}

func TestUntaggedFenceBecomesCodeContainer(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("```\nplain text\n```")
	require.NoError(t, err)
	require.Len(t, out.Blocks, 1)
	require.Equal(t, BlockCode, out.Blocks[0].Kind)
	require.Empty(t, out.Blocks[0].Lang)
}

func TestInlineCodeIsNotLifted(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("use `fmt.Println` here")
	require.NoError(t, err)
	require.Empty(t, out.Blocks)
	require.Contains(t, out.HTML, "<code>fmt.Println</code>")
	require.NotContains(t, out.HTML, "copy-button")
}

func TestBlocksKeepDocumentOrder(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("first\n\n```go\na()\n```\n\nthen\n\n```mermaid\ngraph LR;\n```\n")
	require.NoError(t, err)
	require.Len(t, out.Blocks, 2)
	require.Equal(t, BlockCode, out.Blocks[0].Kind)
	require.Equal(t, BlockDiagram, out.Blocks[1].Kind)
}

func TestFenceSourceEntitiesDecoded(t *testing.T) {
	p := NewPipeline()

	src := "<div>&amp; \"quotes\"</div>\n"
	out, err := p.Render("```html\n" + src + "```")
	require.NoError(t, err)
	require.Len(t, out.Blocks, 1)
	require.Equal(t, src, out.Blocks[0].Source)
}

func TestCopyPayloadRoundTrip(t *testing.T) {
	p := NewPipeline()

	src := "a + b%20 & c\n\t100% héllo 🎉\n"
	out, err := p.Render("```\n" + src + "```")
	require.NoError(t, err)
	require.Len(t, out.Blocks, 1)

	decoded, err := url.PathUnescape(out.Blocks[0].Payload)
	require.NoError(t, err)
	require.Equal(t, src, decoded)
}

// The payload must survive the trip through serialized HTML: parse the body
// back, read the copy control's data-code attribute, decode, and compare
// byte-for-byte with the fence source.
func TestCopyPayloadRoundTripThroughHTML(t *testing.T) {
	p := NewPipeline()

	src := "graph TD;\n  A --> \"B & C\";\n"
	out, err := p.Render("```mermaid\n" + src + "```")
	require.NoError(t, err)

	bodyCtx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(out.HTML), bodyCtx)
	require.NoError(t, err)

	var payload string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Button {
			for _, a := range n.Attr {
				if a.Key == "data-code" {
					payload = a.Val
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	require.NotEmpty(t, payload)

	decoded, err := url.PathUnescape(payload)
	require.NoError(t, err)
	require.Equal(t, src, decoded)
}

func TestUnterminatedFenceFollowsParser(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("```go\nfunc x()")
	require.NoError(t, err)
	require.Len(t, out.Blocks, 1)
	require.Equal(t, "func x()", strings.TrimRight(out.Blocks[0].Source, "\n"))
}

func TestRenderEmptyInput(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("")
	require.NoError(t, err)
	require.Empty(t, out.Blocks)
	require.Empty(t, strings.TrimSpace(out.HTML))
}

func TestSanitizeName(t *testing.T) {
	require.Equal(t, "alice", SanitizeName("<b>alice</b>"))
	require.Equal(t, "anon", SanitizeName(""))
	require.Equal(t, "anon", SanitizeName("   "))
	require.Equal(t, "anon", SanitizeName("<img src=x>"))
	require.Equal(t, "tom & jerry", SanitizeName("tom & jerry"))
	require.Len(t, []rune(SanitizeName(strings.Repeat("n", 40))), 24)
}

func TestCleanTextStripsEscapes(t *testing.T) {
	require.Equal(t, "a[31mred", CleanText("a\x1b[31mred", 0))
	require.Equal(t, "tab\tand\nnewline", CleanText("tab\tand\nnewline", 0))
	require.Equal(t, "abc", CleanText("abcdef", 3))
}
