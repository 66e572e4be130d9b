// Package main is the entry point for the Komari bridge.
package main

import "komari-bridge/cmd/bridge/cmd"

func main() {
	cmd.Execute()
}
