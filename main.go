package main

import (
	"github.com/sidkik/studip-sync/cmd"
	"github.com/sidkik/studip-sync/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
