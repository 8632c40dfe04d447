package main

import "arforge/cmd"

func main() {
	cmd.Execute()
}
