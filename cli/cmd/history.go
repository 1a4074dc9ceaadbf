/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marketdesk/chatcore/server/domain"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <room>",
	Short: "Prints the recent messages of a room.",
	Long: `Prints the most recent messages of a room in chronological order.
Delivery marks reflect this user's view: one check for delivered, two for seen.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		messages, err := api.History(args[0], userID, historyLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading history for %s: %v\n", args[0], err)
			return
		}
		for _, msg := range messages {
			fmt.Println(formatMessage(msg))
		}
	},
}

func formatMessage(msg domain.Message) string {
	mark := ""
	switch {
	case msg.Feedback.IsSeen:
		mark = " ✓✓"
	case msg.Feedback.IsDelivered:
		mark = " ✓"
	}
	return fmt.Sprintf("[%s] %s: %s%s",
		msg.SentAt.Format("15:04:05"), msg.SenderID, msg.Body, mark)
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "Maximum number of messages to print")
}
