// Package main is the entry point of the eolscan CLI.
package main

import (
	"github.com/eolscan/eolscan/cmd"
	"github.com/eolscan/eolscan/config"
	"github.com/eolscan/eolscan/log"
	"github.com/samber/lo"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	cmd.Execute()
}
