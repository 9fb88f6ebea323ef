package main

import "github.com/martinemde/agentwire/cmd/agentwire/cmd"

func main() {
	cmd.Execute()
}
