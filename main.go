package main

import "github.com/ngyewch/sideloader/cmd"

func main() {
	cmd.Execute()
}
