package main

import "wadigest/cmd"

func main() {
	cmd.Execute()
}
