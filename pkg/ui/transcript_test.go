package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoe12378/chat-DB/pkg/format"
)

func TestTranscriptDedupesByID(t *testing.T) {
	tr := NewTranscript()

	require.True(t, tr.Append(Entry{ID: "a", Kind: entryMessage, Body: "one"}))
	require.False(t, tr.Append(Entry{ID: "a", Kind: entryMessage, Body: "one again"}))
	assert.Equal(t, 1, tr.Len())
}

func TestTranscriptKeepsEntriesWithoutID(t *testing.T) {
	tr := NewTranscript()

	require.True(t, tr.Append(Entry{Kind: entryMessage, Body: "one"}))
	require.True(t, tr.Append(Entry{Kind: entryMessage, Body: "two"}))
	assert.Equal(t, 2, tr.Len())
}

func TestTranscriptBlockNumbersSpanEntries(t *testing.T) {
	tr := NewTranscript()
	require.True(t, tr.Append(Entry{ID: "a", Kind: entryMessage, Body: "first"}))
	require.True(t, tr.Append(Entry{ID: "b", Kind: entryMessage, Body: "second"}))

	tr.Enhance("a", "styled a", []format.Block{
		{Kind: format.BlockCode, Lang: "go", Source: "x := 1\n"},
	})
	tr.Enhance("b", "styled b", []format.Block{
		{Kind: format.BlockCode, Lang: "python", Source: "y = 2\n"},
		{Kind: format.BlockDiagram, Lang: "mermaid", Source: "graph TD;\n"},
	})

	b1, ok := tr.Block(1)
	require.True(t, ok)
	assert.Equal(t, "go", b1.Lang)

	b3, ok := tr.Block(3)
	require.True(t, ok)
	assert.Equal(t, format.BlockDiagram, b3.Kind)

	_, ok = tr.Block(4)
	assert.False(t, ok)
	_, ok = tr.Block(0)
	assert.False(t, ok)
}

func TestTranscriptEnhanceInstallsStyledBody(t *testing.T) {
	tr := NewTranscript()
	require.True(t, tr.Append(Entry{ID: "a", Kind: entryMessage, Sender: "bob", Body: "plain"}))

	tr.Enhance("a", "fancy", nil)
	entries := tr.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "fancy", entries[0].ANSI)
}

func TestTranscriptClearKeepsSeenIDs(t *testing.T) {
	tr := NewTranscript()
	require.True(t, tr.Append(Entry{ID: "a", Kind: entryMessage, Body: "one"}))

	tr.Clear()
	assert.Equal(t, 0, tr.Len())

	// A straggling duplicate of a cleared message stays gone.
	assert.False(t, tr.Append(Entry{ID: "a", Kind: entryMessage, Body: "one"}))
}

func TestTranscriptViewShowsSenderForOthersOnly(t *testing.T) {
	tr := NewTranscript()
	require.True(t, tr.Append(Entry{ID: "a", Kind: entryMessage, Sender: "bob", Body: "hello there"}))
	require.True(t, tr.Append(Entry{ID: "b", Kind: entryMessage, Sender: "zoe", Self: true, Body: "hi bob"}))

	out := tr.View(80)
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "hello there")
	assert.Contains(t, out, "hi bob")
	assert.NotContains(t, out, "zoe")
}

func TestTranscriptViewNotices(t *testing.T) {
	tr := NewTranscript()
	tr.Notice("bob joined the chat")

	out := tr.View(80)
	assert.Contains(t, out, "bob joined the chat")
}

func TestTranscriptViewEmpty(t *testing.T) {
	tr := NewTranscript()
	assert.Contains(t, tr.View(80), "no messages yet")
}
