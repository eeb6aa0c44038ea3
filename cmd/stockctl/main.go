package main

import "github.com/keystock/keystock-backend/cmd/stockctl/commands"

func main() {
	commands.Execute()
}
