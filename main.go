package main

import "github.com/kozaktomas/biogate/cmd"

func main() {
	cmd.Execute()
}
