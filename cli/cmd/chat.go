/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marketdesk/chatcore/cli/client"
	"github.com/marketdesk/chatcore/server/domain"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [room]",
	Short: "Starts a chat session in a tview-based interface",
	Long: `Starts a live chat session with a tview-based interface. You can type
messages at the bottom and see the conversation above. Switch rooms with
/join <room>, leave with /quit. Incoming messages are acknowledged as
delivered and seen while the panel is open.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if userID == "" {
			fmt.Fprintln(os.Stderr, "Error: user id is not configured (use --user or the config file)")
			os.Exit(1)
		}
		displayName := viper.GetString(displayNameKey)
		if displayName == "" {
			displayName = userID
		}

		session := client.NewSession(serverAddress, userID)
		defer session.Close()

		if err := runChatUI(session, displayName, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Chat UI error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChatUI(session *client.Session, displayName, roomID string) error {
	app := tview.NewApplication()

	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetScrollable(true).
		ScrollToEnd()

	inputField := tview.NewInputField().
		SetLabel(displayName + " ❯❯ ").
		SetFieldWidth(0).
		SetAcceptanceFunc(tview.InputFieldMaxLength(256))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(textView, 0, 1, false).
		AddItem(inputField, 1, 0, true)

	app.SetRoot(flex, true).SetFocus(inputField)

	// join switches the session to a room and rehydrates its history.
	// The session guarantees the old connection is gone before the new
	// one exists, so no event arrives twice.
	join := func(room string) error {
		if err := session.Switch(room); err != nil {
			return err
		}
		textView.Clear()
		messages, err := api.History(room, session.UserID(), 50)
		if err != nil {
			fmt.Fprintf(textView, "[red]Error loading history: %v\n", err)
		} else {
			for _, msg := range messages {
				fmt.Fprintf(textView, "[white][%s] [blue]%s[white]: %s\n",
					msg.SentAt.Format("15:04:05"), msg.SenderID, msg.Body)
				if msg.SenderID != session.UserID() && !msg.Feedback.IsSeen {
					session.Acknowledge(msg.ID, domain.FeedbackSeen)
				}
			}
		}
		fmt.Fprintf(textView, "[yellow]-- joined #%s --\n", room)
		textView.ScrollToEnd()
		return nil
	}

	if err := join(roomID); err != nil {
		return fmt.Errorf("failed to join %s: %w", roomID, err)
	}

	go func() {
		for event := range session.Events() {
			event := event
			app.QueueUpdateDraw(func() {
				renderEvent(textView, event)
			})
			if event.Type == domain.EventNewMessage && event.Message != nil && event.Message.SenderID != session.UserID() {
				// The panel is open, so receipt and viewing coincide.
				session.Acknowledge(event.Message.ID, domain.FeedbackDelivered)
				session.Acknowledge(event.Message.ID, domain.FeedbackSeen)
			}
		}
	}()

	typing := false
	inputField.SetChangedFunc(func(text string) {
		if text != "" && !typing {
			typing = true
			session.StartTyping()
		}
		if text == "" && typing {
			typing = false
			session.StopTyping()
		}
	})

	inputField.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(inputField.GetText())
		inputField.SetText("")
		if typing {
			typing = false
			session.StopTyping()
		}
		switch {
		case text == "":
		case text == "/quit":
			app.Stop()
		case strings.HasPrefix(text, "/join "):
			room := strings.TrimSpace(strings.TrimPrefix(text, "/join "))
			if err := join(room); err != nil {
				fmt.Fprintf(textView, "[red]Error joining %s: %v\n", room, err)
			}
		default:
			if err := session.SendMessage(text); err != nil {
				fmt.Fprintf(textView, "[red]Error sending message: %v\n", err)
				return
			}
			// Optimistic echo: the server does not send our own message back.
			fmt.Fprintf(textView, "[white][%s] [green]%s[white]: %s\n",
				time.Now().Format("15:04:05"), displayName, text)
			textView.ScrollToEnd()
		}
	})

	return app.Run()
}

func renderEvent(textView *tview.TextView, event domain.Event) {
	ts := event.Timestamp.Format("15:04:05")
	switch event.Type {
	case domain.EventNewMessage:
		if event.Message == nil {
			return
		}
		fmt.Fprintf(textView, "[white][%s] [blue]%s[white]: %s\n", ts, event.Message.SenderID, event.Message.Body)
	case domain.EventUserJoin:
		fmt.Fprintf(textView, "[yellow][%s] * %s joined\n", ts, event.UserID)
	case domain.EventUserLeave:
		fmt.Fprintf(textView, "[yellow][%s] * %s left\n", ts, event.UserID)
	case domain.EventStartTyping:
		fmt.Fprintf(textView, "[gray][%s] * %s is typing…\n", ts, event.UserID)
	case domain.EventCheckMessage:
		if event.Ack != nil && event.Ack.Status == domain.FeedbackSeen {
			fmt.Fprintf(textView, "[gray][%s] * seen by %s\n", ts, event.Ack.RecipientID)
		}
	case domain.EventError:
		fmt.Fprintf(textView, "[red][%s] ! %s\n", ts, event.Error)
	}
	textView.ScrollToEnd()
}
