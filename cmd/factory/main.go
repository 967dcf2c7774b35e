package main

import "github.com/onde/factory/cmd/factory/commands"

func main() {
	commands.Execute()
}
