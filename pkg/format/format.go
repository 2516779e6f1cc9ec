// Package format turns raw chat messages into sanitized HTML plus a block
// inventory. The pipeline is Markdown conversion, HTML sanitization, then a
// tree rewrite that lifts fenced blocks into containers carrying copy
// payloads. Every message passes through the sanitizer; content originates
// from remote peers and is never trusted.
package format

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"
	emoji "github.com/yuin/goldmark-emoji"
)

// BlockKind distinguishes diagram blocks from generic code blocks.
type BlockKind string

const (
	BlockCode    BlockKind = "code"
	BlockDiagram BlockKind = "diagram"
)

// DiagramLang is the fence tag whose blocks render as diagrams instead of
// highlighted code.
const DiagramLang = "mermaid"

// Block is one fenced block lifted out of a message. Source is the fence
// interior byte-for-byte; Payload is the URL-encoded form carried by the copy
// control. Copy actions decode Payload rather than reusing Source.
type Block struct {
	Kind    BlockKind
	Lang    string
	Source  string
	Payload string
}

// Rendered is the formatter output for one message.
type Rendered struct {
	// HTML is the sanitized body with diagram and code containers in place
	// of the original fences.
	HTML string
	// Blocks lists the lifted fences in document order.
	Blocks []Block
}

// Pipeline renders messages. It is safe for concurrent use.
type Pipeline struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewPipeline builds the default pipeline: GFM Markdown with emoji shortcodes
// and hard line breaks, sanitized with a UGC policy that keeps language
// classes on code elements. The converter passes raw HTML through so the
// sanitizer decides what survives; benign user markup stays intact.
func NewPipeline() *Pipeline {
	return &Pipeline{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, emoji.Emoji),
			goldmark.WithRendererOptions(ghtml.WithHardWraps(), ghtml.WithUnsafe()),
		),
		policy: newMessagePolicy(),
	}
}

// Render runs the full pipeline over one raw message.
func (p *Pipeline) Render(text string) (*Rendered, error) {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(text), &buf); err != nil {
		return nil, errors.Wrap(err, "failed to convert markdown")
	}
	sanitized := p.policy.Sanitize(buf.String())
	body, blocks, err := rewriteBlocks(sanitized)
	if err != nil {
		return nil, err
	}
	return &Rendered{HTML: body, Blocks: blocks}, nil
}
