/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marketdesk/chatcore/cli/client"
	"github.com/marketdesk/chatcore/server/domain"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <room>",
	Short: "Tails the live events of a room to stdout.",
	Long: `Joins a room and prints every event as it arrives: messages, joins,
leaves and typing indicators. Interrupt with Ctrl+C to leave.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if userID == "" {
			fmt.Fprintln(os.Stderr, "Error: user id is not configured (use --user or the config file)")
			return
		}

		session := client.NewSession(serverAddress, userID)
		if err := session.Switch(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error joining %s: %v\n", args[0], err)
			return
		}
		defer session.Close()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		for {
			select {
			case <-quit:
				return
			case event := <-session.Events():
				printEvent(event)
			}
		}
	},
}

func printEvent(event domain.Event) {
	ts := event.Timestamp.Format("15:04:05")
	switch event.Type {
	case domain.EventNewMessage:
		if event.Message == nil {
			return
		}
		fmt.Printf("[%s] %s: %s\n", ts, event.Message.SenderID, event.Message.Body)
	case domain.EventUserJoin:
		fmt.Printf("[%s] * %s joined\n", ts, event.UserID)
	case domain.EventUserLeave:
		fmt.Printf("[%s] * %s left\n", ts, event.UserID)
	case domain.EventStartTyping:
		fmt.Printf("[%s] * %s is typing…\n", ts, event.UserID)
	case domain.EventStopTyping:
		fmt.Printf("[%s] * %s stopped typing\n", ts, event.UserID)
	case domain.EventCheckMessage:
		if event.Ack == nil {
			return
		}
		fmt.Printf("[%s] * %s %s %s\n", ts, event.Ack.RecipientID, event.Ack.Status, event.Ack.MessageID)
	case domain.EventError:
		fmt.Printf("[%s] ! %s\n", ts, event.Error)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
