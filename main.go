package main

import "github.com/tlanglois/sillon/cmd"

func main() {
	cmd.Execute()
}
