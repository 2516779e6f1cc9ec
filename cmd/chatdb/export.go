package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zoe12378/chat-DB/pkg/format"
	"github.com/zoe12378/chat-DB/pkg/history"
	"github.com/zoe12378/chat-DB/pkg/ui"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the room history as an HTML document",
	Long: `Fetches the stored room history and writes it as a standalone HTML
transcript, with the same sanitized markup, copy buttons and diagram
placeholders the chat renders.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := history.NewClient(opts.Server)
		if err != nil {
			return err
		}
		messages, err := client.Fetch(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "failed to fetch history")
		}

		entries := make([]ui.Entry, 0, len(messages))
		for _, m := range messages {
			entries = append(entries, ui.NewMessageEntry(
				m.ID,
				m.Username,
				m.Username == opts.Nick,
				ui.LocalStamp(m.Timestamp),
				m.Content,
			))
		}

		path := exportOutput
		if path == "" {
			path = "chat-export-" + time.Now().Format("20060102-150405") + ".html"
		}

		var sb strings.Builder
		if err := ui.WriteHTML(&sb, format.NewPipeline(), entries, time.Now()); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", path)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d messages to %s\n", len(entries), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default chat-export-<timestamp>.html)")
}
