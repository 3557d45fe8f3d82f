package main

import "soakq/cmd"

func main() {
	cmd.Execute()
}
