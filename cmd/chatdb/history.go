package main

import (
	"github.com/spf13/cobra"

	"github.com/zoe12378/chat-DB/pkg/chatrunner"
)

var (
	historyMarkdown    bool
	historyInteractive bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the room history",
	Long: `Fetches the stored room history and prints it oldest first. With
--markdown, messages render through the terminal markdown renderer;
with --interactive, you are offered to continue into the live chat.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mode := chatrunner.RunModeBlocking
		if historyInteractive {
			mode = chatrunner.RunModeInteractive
		}

		session, err := chatrunner.NewSessionBuilder().
			WithContext(cmd.Context()).
			WithServerURL(opts.Server).
			WithUsername(opts.Nick).
			WithIdentityStore(opts.Identity).
			WithTheme(opts.Theme).
			WithMarkdownOutput(historyMarkdown).
			WithMode(mode).
			WithOutputWriter(cmd.OutOrStdout()).
			Build()
		if err != nil {
			return err
		}
		return session.Run()
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyMarkdown, "markdown", false, "Render messages as markdown")
	historyCmd.Flags().BoolVarP(&historyInteractive, "interactive", "i", false, "Offer to continue into the live chat")
}
