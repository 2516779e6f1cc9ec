// Package chatrunner assembles a chat session from its parts: the event
// router, the transport, the history client and the terminal UI, with a
// builder for configuring how the session runs.
package chatrunner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	input "github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/zoe12378/chat-DB/pkg/events"
	"github.com/zoe12378/chat-DB/pkg/history"
	"github.com/zoe12378/chat-DB/pkg/identity"
	"github.com/zoe12378/chat-DB/pkg/ui"
	"github.com/zoe12378/chat-DB/pkg/wire"
)

// RunMode defines how the session executes.
type RunMode string

const (
	// RunModeChat runs the full-screen live chat UI.
	RunModeChat RunMode = "chat"
	// RunModeBlocking prints the room history and exits.
	RunModeBlocking RunMode = "blocking"
	// RunModeInteractive prints the history, then offers to join the
	// live chat when running on a terminal.
	RunModeInteractive RunMode = "interactive"
)

// ChatSession holds the validated configuration and executes the
// session logic. Create one through the SessionBuilder.
type ChatSession struct {
	ctx            context.Context
	serverURL      string
	username       string
	identity       *identity.Store
	historyClient  *history.Client
	theme          string
	markdown       bool
	programOptions []tea.ProgramOption
	mode           RunMode
	outputWriter   io.Writer
	router         *events.EventRouter
}

// Run executes the session based on its configured mode.
func (cs *ChatSession) Run() error {
	switch cs.mode {
	case RunModeChat:
		return cs.runChatInternal()
	case RunModeBlocking:
		return cs.runBlockingInternal()
	case RunModeInteractive:
		return cs.runInteractiveInternal()
	default:
		return errors.Errorf("unknown run mode: %v", cs.mode)
	}
}

// runChatInternal wires the router, forwarding handlers and the UI
// program together. The model dials the server itself once the program
// is running, so handlers are in place before any frame arrives.
func (cs *ChatSession) runChatInternal() error {
	router := cs.router
	var err error
	if router == nil {
		router, err = events.NewEventRouter()
		if err != nil {
			return errors.Wrap(err, "failed to create event router")
		}
	}

	eg, childCtx := errgroup.WithContext(cs.ctx)
	childCtx, cancel := context.WithCancel(childCtx)

	f := func() {
		cancel()
		defer func(router *events.EventRouter) {
			log.Debug().Str("component", "chatrunner").Msg("closing router")
			_ = router.Close()
		}(router)
	}
	if !router.IsRunning() {
		eg.Go(func() error {
			defer f()
			return router.Run(childCtx)
		})
	}

	eg.Go(func() error {
		defer f()

		<-router.Running()

		model := ui.NewModel(ui.Config{
			Username:  cs.username,
			Identity:  cs.identity,
			History:   cs.historyClient,
			Origin:    cs.serverURL,
			Publisher: router.Publisher,
			Theme:     cs.theme,
		})
		p := tea.NewProgram(model, cs.programOptions...)

		router.AddHandler("ui", events.TopicChat, ui.ChatForwardFunc(p))
		router.AddHandler("ui-errors", events.TopicErrors, ui.ErrorForwardFunc(p))
		if err := router.RunHandlers(childCtx); err != nil {
			if errors.Is(err, context.Canceled) && childCtx.Err() == context.Canceled {
				return nil
			}
			return errors.Wrap(err, "failed to run router handlers")
		}

		log.Debug().Str("component", "chatrunner").Msg("starting chat UI")
		_, runErr := p.Run()
		log.Debug().Err(runErr).Str("component", "chatrunner").Msg("chat UI finished")

		if errors.Is(runErr, context.Canceled) && childCtx.Err() == context.Canceled {
			return nil
		}
		return runErr
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) && cs.ctx.Err() == context.Canceled {
		return nil
	}
	return err
}

// runBlockingInternal fetches the room history and writes it to the
// output writer, either as plain lines or rendered markdown.
func (cs *ChatSession) runBlockingInternal() error {
	messages, err := cs.historyClient.Fetch(cs.ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) && cs.ctx.Err() == context.Canceled {
			return nil
		}
		return errors.Wrap(err, "failed to fetch history")
	}
	if len(messages) == 0 {
		_, err := fmt.Fprintln(cs.outputWriter, "no messages")
		return err
	}
	if cs.markdown {
		return writeHistoryMarkdown(cs.outputWriter, messages, cs.theme)
	}
	return writeHistoryPlain(cs.outputWriter, messages)
}

// runInteractiveInternal prints the history, then offers to continue
// into the live chat when stderr is a terminal.
func (cs *ChatSession) runInteractiveInternal() error {
	if err := cs.runBlockingInternal(); err != nil {
		return errors.Wrap(err, "error while printing history")
	}

	if !isatty.IsTerminal(os.Stderr.Fd()) {
		log.Debug().Msg("stderr is not a TTY, skipping chat continuation prompt")
		return nil
	}

	continueInChat, err := askForChatContinuation(os.Stderr)
	if err != nil {
		return errors.Wrap(err, "failed to ask for chat continuation")
	}
	if !continueInChat {
		return nil
	}
	return cs.runChatInternal()
}

func writeHistoryPlain(w io.Writer, messages []wire.Message) error {
	for _, m := range messages {
		line := fmt.Sprintf("%s %s: %s", historyStamp(m.Timestamp), m.Username, m.Content)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return errors.Wrap(err, "failed to write history")
		}
	}
	return nil
}

func writeHistoryMarkdown(w io.Writer, messages []wire.Message, theme string) error {
	var sb strings.Builder
	sb.WriteString("# chat-DB history\n\n")
	for _, m := range messages {
		fmt.Fprintf(&sb, "**%s** · %s\n\n%s\n\n---\n\n", m.Username, historyStamp(m.Timestamp), m.Content)
	}

	width := 80
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			width = tw
		}
	}
	out := ui.RenderMarkdown(sb.String(), width, resolveTheme(theme, w))
	if out == "" {
		return writeHistoryPlain(w, messages)
	}
	_, err := fmt.Fprint(w, out)
	return errors.Wrap(err, "failed to write history")
}

func historyStamp(ts string) string {
	return ui.LocalStamp(ts)
}

// resolveTheme picks a concrete glamour style. Auto detection falls
// back to the undecorated style when the writer is not a terminal.
func resolveTheme(theme string, w io.Writer) string {
	if theme != "" && theme != "auto" {
		return theme
	}
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return "notty"
	}
	if termenv.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

// --- SessionBuilder ---

// SessionBuilder provides a fluent API for configuring a chat session.
type SessionBuilder struct {
	err            error
	ctx            context.Context
	serverURL      string
	username       string
	identity       *identity.Store
	historyClient  *history.Client
	theme          string
	markdown       bool
	programOptions []tea.ProgramOption
	mode           RunMode
	outputWriter   io.Writer
	router         *events.EventRouter
}

// NewSessionBuilder creates a builder with default settings.
func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{
		ctx:            context.Background(),
		programOptions: []tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()},
		outputWriter:   os.Stdout,
		mode:           RunModeChat,
	}
}

// WithContext sets the context for the session.
func (b *SessionBuilder) WithContext(ctx context.Context) *SessionBuilder {
	if b.err != nil {
		return b
	}
	if ctx == nil {
		b.err = errors.New("context cannot be nil")
		return b
	}
	b.ctx = ctx
	return b
}

// WithServerURL sets the chat server origin. (Required)
func (b *SessionBuilder) WithServerURL(serverURL string) *SessionBuilder {
	if b.err != nil {
		return b
	}
	if serverURL == "" {
		b.err = errors.New("server URL cannot be empty")
		return b
	}
	b.serverURL = serverURL
	return b
}

// WithUsername sets the display name to join with. (Required)
func (b *SessionBuilder) WithUsername(username string) *SessionBuilder {
	if b.err != nil {
		return b
	}
	if username == "" {
		b.err = errors.New("username cannot be empty")
		return b
	}
	b.username = username
	return b
}

// WithIdentityStore sets the store that persists display-name changes.
func (b *SessionBuilder) WithIdentityStore(store *identity.Store) *SessionBuilder {
	if b.err != nil {
		return b
	}
	b.identity = store
	return b
}

// WithHistoryClient overrides the history client. When unset, one is
// built from the server URL.
func (b *SessionBuilder) WithHistoryClient(client *history.Client) *SessionBuilder {
	if b.err != nil {
		return b
	}
	b.historyClient = client
	return b
}

// WithTheme sets the markdown rendering style.
func (b *SessionBuilder) WithTheme(theme string) *SessionBuilder {
	if b.err != nil {
		return b
	}
	b.theme = theme
	return b
}

// WithMarkdownOutput renders blocking-mode history through the
// markdown renderer instead of plain lines.
func (b *SessionBuilder) WithMarkdownOutput(markdown bool) *SessionBuilder {
	if b.err != nil {
		return b
	}
	b.markdown = markdown
	return b
}

// WithProgramOptions adds options for the bubbletea program.
func (b *SessionBuilder) WithProgramOptions(opts ...tea.ProgramOption) *SessionBuilder {
	if b.err != nil {
		return b
	}
	b.programOptions = append(b.programOptions, opts...)
	return b
}

// WithMode sets the execution mode.
func (b *SessionBuilder) WithMode(mode RunMode) *SessionBuilder {
	if b.err != nil {
		return b
	}
	switch mode {
	case RunModeChat, RunModeBlocking, RunModeInteractive:
		b.mode = mode
	default:
		b.err = errors.Errorf("invalid run mode: %s", mode)
	}
	return b
}

// WithOutputWriter sets the writer for blocking and interactive modes.
func (b *SessionBuilder) WithOutputWriter(w io.Writer) *SessionBuilder {
	if b.err != nil {
		return b
	}
	if w == nil {
		b.err = errors.New("output writer cannot be nil")
		return b
	}
	b.outputWriter = w
	return b
}

// WithExternalRouter provides an existing EventRouter to use. When not
// provided, an internal router is created and managed.
func (b *SessionBuilder) WithExternalRouter(router *events.EventRouter) *SessionBuilder {
	if b.err != nil {
		return b
	}
	b.router = router
	return b
}

// Build validates the configuration and creates the session.
func (b *SessionBuilder) Build() (*ChatSession, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.serverURL == "" {
		return nil, errors.New("server URL is required (use WithServerURL)")
	}
	if b.username == "" {
		return nil, errors.New("username is required (use WithUsername)")
	}

	historyClient := b.historyClient
	if historyClient == nil {
		var err error
		historyClient, err = history.NewClient(b.serverURL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build history client")
		}
	}

	return &ChatSession{
		ctx:            b.ctx,
		serverURL:      b.serverURL,
		username:       b.username,
		identity:       b.identity,
		historyClient:  historyClient,
		theme:          b.theme,
		markdown:       b.markdown,
		programOptions: b.programOptions,
		mode:           b.mode,
		outputWriter:   b.outputWriter,
		router:         b.router,
	}, nil
}

// askForChatContinuation prompts on the given tty whether to continue
// into the live chat.
func askForChatContinuation(tty io.ReadWriter) (bool, error) {
	in := &input.UI{
		Writer: tty,
		Reader: tty,
	}

	_, _ = fmt.Fprint(tty, "\n")
	query := "Continue into the live chat? [Y/n]"
	answer, err := in.Ask(query, &input.Options{
		Default:  "y",
		Required: true,
		Loop:     true,
		ValidateFunc: func(answer string) error {
			switch answer {
			case "y", "Y", "n", "N", "":
				return nil
			default:
				return errors.Errorf("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to get user input")
	}
	_, _ = fmt.Fprint(tty, "\n")

	return answer == "y" || answer == "Y" || answer == "", nil
}
