package main

import "transitwatch/cmd"

func main() {
	cmd.Run()
}
