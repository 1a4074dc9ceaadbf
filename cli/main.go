/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/marketdesk/chatcore/cli/cmd"

func main() {
	cmd.Execute()
}
