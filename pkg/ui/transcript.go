package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/zoe12378/chat-DB/pkg/format"
)

type entryKind int

const (
	entryMessage entryKind = iota
	entryNotice
)

// Entry is a single transcript item, either a chat message or a status
// notice. Body holds the cleaned source text; ANSI holds the styled
// rendering once the async markdown pass has completed.
type Entry struct {
	ID     string
	Kind   entryKind
	Sender string
	Self   bool
	Body   string
	Stamp  string
	ANSI   string
	Blocks []int
}

// Transcript accumulates entries in arrival order and keeps a running
// index of copyable blocks across all of them. Messages carrying an ID
// already seen are dropped.
type Transcript struct {
	entries []Entry
	seen    map[string]bool
	blocks  []format.Block
}

func NewTranscript() *Transcript {
	return &Transcript{
		seen: map[string]bool{},
	}
}

// NewMessageEntry builds a message entry for transcript assembly
// outside the live UI, such as history export.
func NewMessageEntry(id, sender string, self bool, stamp, body string) Entry {
	return Entry{
		ID:     id,
		Kind:   entryMessage,
		Sender: sender,
		Self:   self,
		Stamp:  stamp,
		Body:   body,
	}
}

// Append adds a message entry and reports whether it was actually added.
// Duplicate IDs are rejected, entries without an ID are always kept.
func (t *Transcript) Append(e Entry) bool {
	if e.ID != "" {
		if t.seen[e.ID] {
			return false
		}
		t.seen[e.ID] = true
	}
	t.entries = append(t.entries, e)
	return true
}

func (t *Transcript) Notice(text string) {
	t.entries = append(t.entries, Entry{
		Kind:  entryNotice,
		Body:  text,
		Stamp: time.Now().Format("15:04"),
	})
}

// Enhance installs the styled rendering and block list for the entry
// with the given ID. Blocks are appended to the transcript-wide index
// so they can be addressed by a stable ordinal.
func (t *Transcript) Enhance(id, ansi string, blocks []format.Block) {
	for i := range t.entries {
		if t.entries[i].ID != id || t.entries[i].Kind != entryMessage {
			continue
		}
		t.entries[i].ANSI = ansi
		for _, b := range blocks {
			t.blocks = append(t.blocks, b)
			t.entries[i].Blocks = append(t.entries[i].Blocks, len(t.blocks))
		}
		return
	}
}

// Block returns the n-th copyable block, 1-based.
func (t *Transcript) Block(n int) (format.Block, bool) {
	if n < 1 || n > len(t.blocks) {
		return format.Block{}, false
	}
	return t.blocks[n-1], true
}

func (t *Transcript) Blocks() []format.Block {
	return t.blocks
}

func (t *Transcript) Entries() []Entry {
	return t.entries
}

func (t *Transcript) Len() int {
	return len(t.entries)
}

// Clear drops all entries and the block index. Seen IDs are kept so a
// straggling duplicate of a cleared message does not reappear.
func (t *Transcript) Clear() {
	t.entries = nil
	t.blocks = nil
}

// View renders the transcript for a viewport of the given width.
func (t *Transcript) View(width int) string {
	if len(t.entries) == 0 {
		return noticeStyle.Render("no messages yet")
	}
	var sb strings.Builder
	for i, e := range t.entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(t.renderEntry(e, width))
	}
	return sb.String()
}

func (t *Transcript) renderEntry(e Entry, width int) string {
	if e.Kind == entryNotice {
		line := noticeStyle.Render("· " + e.Body + " ·")
		if width > 0 {
			line = lipgloss.PlaceHorizontal(width, lipgloss.Center, line)
		}
		return line + "\n"
	}

	var sb strings.Builder
	sb.WriteString(timeStyle.Render(e.Stamp))
	if e.Self {
		sb.WriteString(" " + selfLabelStyle.Render("▸"))
	} else {
		sb.WriteString(" " + otherLabelStyle.Render(e.Sender))
	}
	sb.WriteString("\n")

	if e.ANSI != "" {
		sb.WriteString(strings.TrimRight(e.ANSI, "\n"))
	} else {
		sb.WriteString(strings.TrimRight(e.Body, "\n"))
	}
	sb.WriteString("\n")

	if len(e.Blocks) > 0 {
		refs := make([]string, 0, len(e.Blocks))
		for _, n := range e.Blocks {
			b, ok := t.Block(n)
			if !ok {
				continue
			}
			label := b.Lang
			if label == "" {
				label = "text"
			}
			if b.Kind == format.BlockDiagram {
				label = "diagram"
			}
			refs = append(refs, fmt.Sprintf("/copy %d (%s)", n, label))
		}
		sb.WriteString(blocksHintStyle.Render("  " + strings.Join(refs, "  ")))
		sb.WriteString("\n")
	}
	return sb.String()
}
