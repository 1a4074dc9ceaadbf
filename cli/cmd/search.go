/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <room> <pattern>",
	Short: "Searches a room's messages with a regular expression.",
	Long: `Searches the message history of a room server-side. The pattern is a
regular expression evaluated against each message body.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		messages, err := api.Search(args[0], userID, args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error searching %s: %v\n", args[0], err)
			return
		}
		if len(messages) == 0 {
			fmt.Println("no matches")
			return
		}
		for _, msg := range messages {
			fmt.Println(formatMessage(msg))
		}
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
