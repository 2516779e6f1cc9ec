package main

import (
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zoe12378/chat-DB/pkg/chatrunner"
	"github.com/zoe12378/chat-DB/pkg/config"
	"github.com/zoe12378/chat-DB/pkg/identity"
)

var (
	flagServer   string
	flagNick     string
	flagTheme    string
	flagConfig   string
	flagLogLevel string
	flagLogFile  string
)

// options is the resolved configuration for the current invocation:
// flags over config file over defaults.
type options struct {
	Server   string
	Nick     string
	Theme    string
	LogLevel string
	LogFile  string
	Identity *identity.Store
}

var opts *options

var rootCmd = &cobra.Command{
	Use:   "chatdb",
	Short: "Terminal client for chat-DB rooms",
	Long: `chatdb joins a chat-DB room from the terminal: live messages with
markdown rendering, typing indicators, presence notices and copyable
code and diagram blocks. Without a subcommand it opens the chat UI;
when stdout is not a terminal it prints the room history instead.`,
	RunE: runChat,
}

func init() {
	// Assigned here rather than in the literal: the closure mentions
	// rootCmd, which the compiler rejects as an initialization cycle.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		opts, err = resolveOptions(cmd)
		if err != nil {
			return err
		}
		// Inside the full-screen UI, logs go to the file or nowhere;
		// writing to stderr would tear the display.
		console := cmd.Name() != rootCmd.Name() || !isatty.IsTerminal(os.Stdout.Fd())
		return initLogger(opts.LogLevel, opts.LogFile, console)
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagServer, "server", "", "Chat server origin (http or https)")
	pf.StringVar(&flagNick, "nick", "", "Display name for this session")
	pf.StringVar(&flagTheme, "theme", "", "Markdown style: auto, dark, light or notty")
	pf.StringVar(&flagConfig, "config", "", "Path to the config file")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.StringVar(&flagLogFile, "log-file", "", "Write logs to this file")
}

func resolveOptions(cmd *cobra.Command) (*options, error) {
	configPath := flagConfig
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			log.Warn().Err(err).Msg("could not locate config directory")
		} else {
			configPath = p
		}
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, err
		}
	}

	o := &options{
		Server:   pick(flagServer, cfg.Server),
		Theme:    pick(flagTheme, cfg.Theme),
		LogLevel: pick(flagLogLevel, cfg.LogLevel),
		LogFile:  pick(flagLogFile, cfg.LogFile),
	}

	idPath, err := identity.DefaultPath()
	if err != nil {
		log.Warn().Err(err).Msg("could not locate identity file, using temp dir")
		idPath = filepath.Join(os.TempDir(), "chat-db-identity.json")
	}
	o.Identity = identity.NewStore(idPath)

	o.Nick = pick(flagNick, cfg.Nick)
	if o.Nick == "" {
		name, err := o.Identity.GetOrCreate()
		if err != nil {
			log.Warn().Err(err).Msg("could not persist identity")
		}
		o.Nick = name
	}
	return o, nil
}

func pick(flag, file string) string {
	if flag != "" {
		return flag
	}
	return file
}

func runChat(cmd *cobra.Command, _ []string) error {
	mode := chatrunner.RunModeChat
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		log.Info().Msg("stdout is not a terminal, printing history instead")
		mode = chatrunner.RunModeBlocking
	}

	session, err := chatrunner.NewSessionBuilder().
		WithContext(cmd.Context()).
		WithServerURL(opts.Server).
		WithUsername(opts.Nick).
		WithIdentityStore(opts.Identity).
		WithTheme(opts.Theme).
		WithMode(mode).
		Build()
	if err != nil {
		return err
	}
	return session.Run()
}

func main() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(clearCmd)

	err := rootCmd.Execute()
	cobra.CheckErr(err)
}
