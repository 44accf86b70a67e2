package main

import "apiscope/cmd"

func main() {
	cmd.Execute()
}
