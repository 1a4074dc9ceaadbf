/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marketdesk/chatcore/cli/client"
)

var (
	cfgFile       string
	serverAddress string
	userID        string
	api           *client.API
)

const (
	serverAddressKey = "server_address"
	userIDKey        = "user_id"
	displayNameKey   = "display_name"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatcore",
	Short: "Terminal client for the chatcore back-office chat server",
	Long: `chatcore is the terminal client for the marketplace back-office chat
server. It lists rooms, prints and searches message history, tails live
room events and runs a full-screen chat session.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if serverAddress == "" {
			return fmt.Errorf("server address is not configured")
		}
		api = client.NewAPI(serverAddress)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// one‑shot
	if len(os.Args) > 1 {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
			return
		}
		return
	}

	// REPL
	fmt.Println("entering interactive mode, type 'exit' to quit")
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("❯❯❯ ")
		line, _ := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		args, _ := shellwords.Parse(line)
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
			return
		}
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.chatcore.yaml)")
	rootCmd.PersistentFlags().String("server", "localhost:8080", "Address of the chatcore server (host:port)")
	rootCmd.PersistentFlags().String("user", "", "Stable user identity to connect as")

	viper.BindPFlag(serverAddressKey, rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag(userIDKey, rootCmd.PersistentFlags().Lookup("user"))
	viper.SetDefault(serverAddressKey, "localhost:8080")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".chatcore" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".chatcore")
	}

	viper.AutomaticEnv() // read in environment variables that match

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}

	serverAddress = viper.GetString(serverAddressKey)
	userID = viper.GetString(userIDKey)
	if userID == "" {
		// Fall back to the display name so a bare config still connects.
		userID = viper.GetString(displayNameKey)
	}
}
