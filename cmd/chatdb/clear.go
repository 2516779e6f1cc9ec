package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"

	"github.com/zoe12378/chat-DB/pkg/history"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the room history on the server",
	Long:  `Deletes the stored room history for everyone. Asks for confirmation unless --yes is given.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !clearYes {
			if !isatty.IsTerminal(os.Stdin.Fd()) {
				return errors.New("refusing to clear history without confirmation (use --yes)")
			}
			ok, err := confirmClear()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
		}

		client, err := history.NewClient(opts.Server)
		if err != nil {
			return err
		}
		if err := client.Clear(cmd.Context()); err != nil {
			return errors.Wrap(err, "failed to clear history")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
		return nil
	},
}

func confirmClear() (bool, error) {
	ui := &input.UI{
		Writer: os.Stderr,
		Reader: os.Stdin,
	}
	query := "Clear the room history for everyone? [y/N]"
	answer, err := ui.Ask(query, &input.Options{
		Default:  "n",
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
	return answer == "y" || answer == "Y", nil
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Skip the confirmation prompt")
}
