package main

import "github.com/gryag-bot/gryag/cmd"

func main() {
	cmd.Execute()
}
