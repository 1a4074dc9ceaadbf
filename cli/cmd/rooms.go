/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// roomsCmd represents the rooms command
var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Lists the chat rooms known to the server.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		rooms, err := api.Rooms()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing rooms: %v\n", err)
			return
		}
		if len(rooms) == 0 {
			fmt.Println("no rooms")
			return
		}
		for _, room := range rooms {
			fmt.Printf("%-26s  %s  (created %s)\n",
				room.ID, room.Name, room.CreatedAt.Format("2006-01-02 15:04"))
		}
	},
}

// roomsCreateCmd represents the rooms create subcommand
var roomsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Creates a new chat room.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		room, err := api.CreateRoom(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating room: %v\n", err)
			return
		}
		fmt.Printf("created room %s (%s)\n", room.Name, room.ID)
	},
}

func init() {
	rootCmd.AddCommand(roomsCmd)
	roomsCmd.AddCommand(roomsCreateCmd)
}
