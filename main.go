package main

import "github.com/agentic-research/notesmd/cmd"

func main() {
	cmd.Execute()
}
