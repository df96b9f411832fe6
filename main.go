package main

import "github.com/davebream/rpswatch/cmd"

func main() {
	cmd.Execute()
}
