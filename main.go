package main

import "shipclass/cmd"

func main() {
	cmd.Execute()
}
