package ui

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zoe12378/chat-DB/pkg/events"
	"github.com/zoe12378/chat-DB/pkg/format"
	"github.com/zoe12378/chat-DB/pkg/history"
	"github.com/zoe12378/chat-DB/pkg/identity"
	"github.com/zoe12378/chat-DB/pkg/transport"
	"github.com/zoe12378/chat-DB/pkg/wire"
)

const (
	maxInputLines = 5
	statusLinger  = 3 * time.Second
	pruneEvery    = time.Second
	maxNameLen    = 24
)

// Emitter is the outbound side of the connection, satisfied by
// transport.Client.
type Emitter interface {
	Join(username string) error
	SendMessage(username, content string) error
	Typing(username string) error
	Rename(oldName, newName string) error
	Close() error
}

// Config carries everything the chat model needs. Origin and Publisher
// may be empty, in which case the model runs offline (used by the
// blocking history modes and by tests).
type Config struct {
	Username  string
	Identity  *identity.Store
	History   *history.Client
	Origin    string
	Publisher message.Publisher
	Theme     string
}

type formKind int

const (
	formNone formKind = iota
	formRename
	formEmoji
	formCopy
)

type keyMap struct {
	Send key.Binding
	Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Send: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Quit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// Internal messages produced by the model's own commands.
type (
	clientReadyMsg struct {
		client Emitter
	}
	dialFailedMsg struct {
		err error
	}
	historyLoadedMsg struct {
		messages []wire.Message
	}
	historyFailedMsg struct {
		err error
	}
	entryEnhancedMsg struct {
		id     string
		ansi   string
		blocks []format.Block
	}
	pruneTickMsg    struct{}
	statusExpireMsg struct {
		seq int
	}
	copyResultMsg struct {
		n   int
		err error
	}
	clearResultMsg struct {
		err error
	}
	exportResultMsg struct {
		path string
		err  error
	}
)

// Model is the root bubbletea model for the chat session.
type Model struct {
	username  string
	identity  *identity.Store
	history   *history.Client
	origin    string
	publisher message.Publisher
	theme     string

	client   Emitter
	pipeline *format.Pipeline

	ta         textarea.Model
	vp         viewport.Model
	transcript *Transcript
	typing     *typingRegistry
	throttle   *throttle
	status     statusBanner
	keys       keyMap

	form     *huh.Form
	formKind formKind

	renameInput string
	emojiChoice string
	copyChoice  int

	userCount int
	alert     string
	width     int
	height    int
	ready     bool

	copyFn func(string) error
	clock  func() time.Time
}

func NewModel(cfg Config) *Model {
	ta := textarea.New()
	ta.Placeholder = "Message (/help for commands)"
	ta.Prompt = "┃ "
	ta.ShowLineNumbers = false
	ta.SetHeight(1)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "shift+enter"))
	ta.Focus()

	return &Model{
		username:   cfg.Username,
		identity:   cfg.Identity,
		history:    cfg.History,
		origin:     cfg.Origin,
		publisher:  cfg.Publisher,
		theme:      cfg.Theme,
		pipeline:   format.NewPipeline(),
		ta:         ta,
		transcript: NewTranscript(),
		typing:     newTypingRegistry(),
		throttle:   newThrottle(),
		keys:       defaultKeyMap(),
		copyFn:     clipboard.WriteAll,
		clock:      time.Now,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.dialCmd(), m.historyCmd(), m.pruneTickCmd())
}

func (m *Model) dialCmd() tea.Cmd {
	if m.origin == "" || m.publisher == nil {
		return nil
	}
	origin, pub := m.origin, m.publisher
	return func() tea.Msg {
		client, err := transport.Dial(context.Background(), origin, pub)
		if err != nil {
			return dialFailedMsg{err: err}
		}
		return clientReadyMsg{client: client}
	}
}

func (m *Model) historyCmd() tea.Cmd {
	if m.history == nil {
		return nil
	}
	h := m.history
	return func() tea.Msg {
		messages, err := h.Fetch(context.Background())
		if err != nil {
			return historyFailedMsg{err: err}
		}
		return historyLoadedMsg{messages: messages}
	}
}

func (m *Model) pruneTickCmd() tea.Cmd {
	return tea.Tick(pruneEvery, func(time.Time) tea.Msg {
		return pruneTickMsg{}
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.ready {
			m.vp = viewport.New(msg.Width, 10)
			m.vp.KeyMap = scrollKeys()
			m.ready = true
		}
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if m.alert != "" {
			m.alert = ""
			return m, nil
		}
		if m.form != nil {
			return m.updateForm(msg)
		}
		return m.updateKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd

	case clientReadyMsg:
		m.client = msg.client
		return m, m.joinCmd()

	case dialFailedMsg:
		log.Warn().Err(msg.err).Msg("connection failed")
		return m, nil

	case historyLoadedMsg:
		var cmds []tea.Cmd
		for _, wm := range msg.messages {
			if c := m.appendMessage(wm); c != nil {
				cmds = append(cmds, c)
			}
		}
		return m, tea.Batch(cmds...)

	case historyFailedMsg:
		log.Warn().Err(msg.err).Msg("failed to load history")
		return m, nil

	case ChatMessageMsg:
		return m, m.appendMessage(msg.Message)

	case UserJoinedMsg:
		name := cleanName(msg.Username)
		m.transcript.Notice(name + " joined the chat")
		m.refreshViewport()
		return m, nil

	case UserLeftMsg:
		name := cleanName(msg.Username)
		m.typing.Clear(name)
		m.transcript.Notice(name + " left the chat")
		m.refreshViewport()
		return m, nil

	case UserCountMsg:
		m.userCount = msg.Count
		return m, nil

	case TypingMsg:
		if msg.Username != m.username {
			m.typing.Mark(cleanName(msg.Username), m.clock())
		}
		return m, nil

	case NameChangedMsg:
		oldName, newName := cleanName(msg.Old), cleanName(msg.New)
		m.typing.Clear(oldName)
		m.transcript.Notice(oldName + " is now " + newName)
		m.refreshViewport()
		return m, nil

	case ChatErrorMsg:
		m.transcript.Notice("server error: " + format.CleanText(msg.Message, 0))
		m.refreshViewport()
		return m, nil

	case StatusMsg:
		seq := m.status.Set(msg.Status)
		if msg.Status.State == transport.StateConnected {
			return m, tea.Tick(statusLinger, func(time.Time) tea.Msg {
				return statusExpireMsg{seq: seq}
			})
		}
		return m, nil

	case OpErrorMsg:
		log.Warn().Str("op", msg.Op).Str("error", msg.Err).Msg("operation failed")
		m.transcript.Notice(msg.Op + " failed: " + msg.Err)
		m.refreshViewport()
		return m, nil

	case entryEnhancedMsg:
		m.transcript.Enhance(msg.id, msg.ansi, msg.blocks)
		m.refreshViewport()
		return m, nil

	case pruneTickMsg:
		m.typing.Prune(m.clock())
		return m, m.pruneTickCmd()

	case statusExpireMsg:
		m.status.Expire(msg.seq)
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			m.alert = "copy failed: " + msg.err.Error()
			return m, nil
		}
		m.transcript.Notice(fmt.Sprintf("block %d copied", msg.n))
		m.refreshViewport()
		return m, nil

	case clearResultMsg:
		if msg.err != nil {
			m.alert = "failed to clear history: " + msg.err.Error()
			return m, nil
		}
		m.transcript.Clear()
		m.transcript.Notice("history cleared")
		m.refreshViewport()
		return m, nil

	case exportResultMsg:
		if msg.err != nil {
			m.alert = "export failed: " + msg.err.Error()
			return m, nil
		}
		m.transcript.Notice("transcript exported to " + msg.path)
		m.refreshViewport()
		return m, nil
	}

	if m.form != nil {
		return m.updateForm(msg)
	}
	var (
		cmds []tea.Cmd
		cmd  tea.Cmd
	)
	m.ta, cmd = m.ta.Update(msg)
	cmds = append(cmds, cmd)
	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.closeClient()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Send):
		return m, m.submit()
	}

	var (
		cmds []tea.Cmd
		cmd  tea.Cmd
	)
	before := m.ta.Value()
	m.ta, cmd = m.ta.Update(msg)
	cmds = append(cmds, cmd)
	if m.ta.Value() != before {
		m.syncInputHeight()
		if c := m.typingCmd(); c != nil {
			cmds = append(cmds, c)
		}
	}
	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	fm, cmd := m.form.Update(msg)
	if f, ok := fm.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		kind := m.formKind
		m.form = nil
		m.formKind = formNone
		switch kind {
		case formRename:
			return m, m.rename(m.renameInput)
		case formEmoji:
			if m.emojiChoice != "" {
				m.ta.InsertString(m.emojiChoice)
				m.syncInputHeight()
			}
		case formCopy:
			return m, m.copyBlock(m.copyChoice)
		}
		return m, cmd
	case huh.StateAborted:
		m.form = nil
		m.formKind = formNone
		return m, cmd
	}
	return m, cmd
}

// submit sends the current input, or runs it as a command when it
// starts with a slash. Whitespace-only input is left in place.
func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.ta.Value())
	if text == "" {
		return nil
	}
	m.ta.Reset()
	m.ta.SetHeight(1)
	m.layout()

	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}

	clean := format.CleanText(text, 0)
	e := Entry{
		ID:     uuid.NewString(),
		Kind:   entryMessage,
		Sender: m.username,
		Self:   true,
		Body:   clean,
		Stamp:  m.clock().Format("15:04"),
	}
	m.transcript.Append(e)
	m.refreshViewport()

	cmds := []tea.Cmd{m.enhanceCmd(e.ID, clean)}
	if m.client != nil {
		c, u, pub := m.client, m.username, m.publisher
		cmds = append(cmds, func() tea.Msg {
			if err := c.SendMessage(u, clean); err != nil {
				return reportOpError(pub, "send_message", err)
			}
			return nil
		})
	} else {
		log.Debug().Msg("not connected, message rendered locally only")
	}
	return tea.Batch(cmds...)
}

func (m *Model) runCommand(input string) tea.Cmd {
	fields := strings.Fields(input)
	name, args := fields[0], fields[1:]
	switch name {
	case "/help":
		m.transcript.Notice("commands: /nick [name], /emoji, /copy [n], /clear, /export [file], /quit")
		m.refreshViewport()
	case "/quit":
		m.closeClient()
		return tea.Quit
	case "/nick":
		if len(args) > 0 {
			return m.rename(strings.Join(args, " "))
		}
		return m.openRenameForm()
	case "/emoji":
		return m.openEmojiForm()
	case "/copy":
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				m.transcript.Notice("usage: /copy [block number]")
				m.refreshViewport()
				return nil
			}
			return m.copyBlock(n)
		}
		return m.openCopyForm()
	case "/clear":
		return m.clearCmd()
	case "/export":
		path := defaultExportPath(m.clock())
		if len(args) > 0 {
			path = args[0]
		}
		return m.exportCmd(path)
	default:
		m.transcript.Notice("unknown command: " + name)
		m.refreshViewport()
	}
	return nil
}

// rename validates and applies a display-name change. The new name is
// usable immediately; persisting it and telling the server happen in
// the background.
func (m *Model) rename(raw string) tea.Cmd {
	name := format.CleanText(strings.TrimSpace(raw), maxNameLen)
	if name == "" || name == m.username {
		m.transcript.Notice("name unchanged")
		m.refreshViewport()
		return nil
	}
	oldName := m.username
	m.username = name
	m.transcript.Notice("you are now " + name)
	m.refreshViewport()

	ident, client, pub := m.identity, m.client, m.publisher
	return func() tea.Msg {
		if client != nil {
			if err := client.Rename(oldName, name); err != nil {
				return reportOpError(pub, "change_username", err)
			}
		}
		if ident != nil {
			if err := ident.Rename(name); err != nil {
				return reportOpError(pub, "rename", err)
			}
		}
		return nil
	}
}

func (m *Model) copyBlock(n int) tea.Cmd {
	b, ok := m.transcript.Block(n)
	if !ok {
		m.transcript.Notice(fmt.Sprintf("no block %d", n))
		m.refreshViewport()
		return nil
	}
	copyFn := m.copyFn
	return func() tea.Msg {
		text, err := url.PathUnescape(b.Payload)
		if err == nil {
			err = copyFn(text)
		}
		return copyResultMsg{n: n, err: err}
	}
}

func (m *Model) clearCmd() tea.Cmd {
	if m.history == nil {
		m.transcript.Notice("no server configured")
		m.refreshViewport()
		return nil
	}
	h := m.history
	return func() tea.Msg {
		return clearResultMsg{err: h.Clear(context.Background())}
	}
}

func (m *Model) exportCmd(path string) tea.Cmd {
	entries := append([]Entry(nil), m.transcript.Entries()...)
	pl := m.pipeline
	clock := m.clock
	return func() tea.Msg {
		var sb strings.Builder
		if err := WriteHTML(&sb, pl, entries, clock()); err != nil {
			return exportResultMsg{path: path, err: err}
		}
		if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
			return exportResultMsg{path: path, err: err}
		}
		return exportResultMsg{path: path}
	}
}

// closeClient sends the close frame so the server announces the
// departure before the program tears down.
func (m *Model) closeClient() {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing connection")
		}
	}
}

func (m *Model) joinCmd() tea.Cmd {
	c, u, pub := m.client, m.username, m.publisher
	return func() tea.Msg {
		if err := c.Join(u); err != nil {
			return reportOpError(pub, "join", err)
		}
		return nil
	}
}

func (m *Model) typingCmd() tea.Cmd {
	if m.client == nil || !m.throttle.Allow(m.clock()) {
		return nil
	}
	c, u, pub := m.client, m.username, m.publisher
	return func() tea.Msg {
		if err := c.Typing(u); err != nil {
			return reportOpError(pub, "typing", err)
		}
		return nil
	}
}

// reportOpError surfaces an asynchronous operation failure. With a
// publisher attached it goes out on the error topic, so the forwarding
// handler stays the single sink; offline models deliver it directly.
func reportOpError(pub message.Publisher, op string, err error) tea.Msg {
	if pub != nil {
		events.PublishError(pub, op, err)
		return nil
	}
	return OpErrorMsg{Op: op, Err: err.Error()}
}

// appendMessage adds an inbound or history message to the transcript
// and kicks off its markdown rendering. Duplicates by server ID are
// dropped. A message from someone also clears their typing indicator.
func (m *Model) appendMessage(wm wire.Message) tea.Cmd {
	sender := cleanName(wm.Username)
	m.typing.Clear(sender)

	e := Entry{
		ID:     wm.ID,
		Kind:   entryMessage,
		Sender: sender,
		Self:   wm.Username == m.username,
		Body:   format.CleanText(wm.Content, 0),
		Stamp:  m.stampFor(wm.Timestamp),
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if !m.transcript.Append(e) {
		return nil
	}
	m.refreshViewport()
	return m.enhanceCmd(e.ID, e.Body)
}

func (m *Model) enhanceCmd(id, body string) tea.Cmd {
	width := 80
	if m.ready {
		width = max(20, m.vp.Width-2)
	}
	theme, pl := m.theme, m.pipeline
	return func() tea.Msg {
		ansi := RenderMarkdown(body, width, theme)
		var blocks []format.Block
		if rendered, err := pl.Render(body); err == nil {
			blocks = rendered.Blocks
		} else {
			log.Warn().Err(err).Msg("failed to extract blocks")
		}
		return entryEnhancedMsg{id: id, ansi: strings.TrimRight(ansi, "\n"), blocks: blocks}
	}
}

func (m *Model) openRenameForm() tea.Cmd {
	m.renameInput = m.username
	m.formKind = formRename
	m.form = huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Change display name").
			CharLimit(maxNameLen).
			Value(&m.renameInput),
	)).WithWidth(formWidth(m.width))
	return m.form.Init()
}

func (m *Model) openEmojiForm() tea.Cmd {
	m.emojiChoice = ""
	m.formKind = formEmoji
	m.form = huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Insert emoji").
			Options(emojiOptions()...).
			Value(&m.emojiChoice),
	)).WithWidth(formWidth(m.width))
	return m.form.Init()
}

func (m *Model) openCopyForm() tea.Cmd {
	blocks := m.transcript.Blocks()
	if len(blocks) == 0 {
		m.transcript.Notice("nothing to copy")
		m.refreshViewport()
		return nil
	}
	opts := make([]huh.Option[int], 0, len(blocks))
	for i, b := range blocks {
		label := b.Lang
		if label == "" {
			label = "text"
		}
		if b.Kind == format.BlockDiagram {
			label = "diagram"
		}
		opts = append(opts, huh.NewOption(
			fmt.Sprintf("%d: %s (%d chars)", i+1, label, len(b.Source)), i+1))
	}
	m.copyChoice = 0
	m.formKind = formCopy
	m.form = huh.NewForm(huh.NewGroup(
		huh.NewSelect[int]().
			Title("Copy block").
			Options(opts...).
			Value(&m.copyChoice),
	)).WithWidth(formWidth(m.width))
	return m.form.Init()
}

func (m *Model) syncInputHeight() {
	lines := strings.Count(m.ta.Value(), "\n") + 1
	if lines > maxInputLines {
		lines = maxInputLines
	}
	if lines != m.ta.Height() {
		m.ta.SetHeight(lines)
		m.layout()
	}
}

func (m *Model) layout() {
	if !m.ready {
		return
	}
	h := m.height - 2 - m.ta.Height()
	if h < 1 {
		h = 1
	}
	m.vp.Width = m.width
	m.vp.Height = h
	m.ta.SetWidth(m.width)
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.vp.SetContent(m.transcript.View(m.vp.Width))
	m.vp.GotoBottom()
}

func (m *Model) stampFor(ts string) string {
	if ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t.Local().Format("15:04")
		}
	}
	return m.clock().Format("15:04")
}

func (m *Model) headerView() string {
	parts := []string{
		headerStyle.Render("chat-DB"),
		countStyle.Render(fmt.Sprintf("%d online", m.userCount)),
	}
	if banner := m.status.View(); banner != "" {
		parts = append(parts, banner)
	}
	return strings.Join(parts, "  ")
}

func (m *Model) View() string {
	if !m.ready {
		return "loading…"
	}
	if m.alert != "" {
		box := alertStyle.Render(m.alert + "\n\n" + noticeStyle.Render("press any key"))
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	typing := m.typing.Line(m.clock())
	if typing != "" {
		typing = typingStyle.Render(typing)
	}
	input := m.ta.View()
	if m.form != nil {
		input = m.form.View()
	}
	return strings.Join([]string{
		m.headerView(),
		m.vp.View(),
		typing,
		input,
	}, "\n")
}

func cleanName(name string) string {
	return format.CleanText(strings.TrimSpace(name), maxNameLen)
}

func formWidth(total int) int {
	if total <= 0 {
		return 48
	}
	return min(48, total-2)
}

func scrollKeys() viewport.KeyMap {
	return viewport.KeyMap{
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
	}
}

func defaultExportPath(now time.Time) string {
	return "chat-export-" + now.Format("20060102-150405") + ".html"
}

func emojiOptions() []huh.Option[string] {
	choices := []struct {
		glyph string
		name  string
	}{
		{"😄", "smile"},
		{"😂", "joy"},
		{"❤️", "heart"},
		{"👍", "thumbsup"},
		{"🎉", "tada"},
		{"🔥", "fire"},
		{"🤔", "thinking"},
		{"😅", "sweat smile"},
		{"😭", "sob"},
		{"👋", "wave"},
		{"🚀", "rocket"},
		{"✅", "check"},
	}
	opts := make([]huh.Option[string], 0, len(choices))
	for _, c := range choices {
		opts = append(opts, huh.NewOption(c.glyph+"  "+c.name, c.glyph))
	}
	return opts
}
