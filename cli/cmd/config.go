/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [new_display_name]",
	Short: "Gets or sets the display name.",
	Long: `Manages local configuration for the chatcore client.
If called without arguments, it displays the current configuration.
If called with an argument, it sets the display name to the provided value.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Printf("Display Name: %s\n", viper.GetString(displayNameKey))
			fmt.Printf("User ID:      %s\n", viper.GetString(userIDKey))
			fmt.Printf("Server:       %s\n", viper.GetString(serverAddressKey))
			return
		}

		viper.Set(displayNameKey, args[0])
		if err := viper.WriteConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				home, herr := os.UserHomeDir()
				cobra.CheckErr(herr)
				err = viper.WriteConfigAs(filepath.Join(home, ".chatcore.yaml"))
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
				return
			}
		}
		fmt.Printf("Display name set to: %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
