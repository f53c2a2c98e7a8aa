/*
Package main provides the relayctl administration entry point.
*/
package main

import (
	"os"

	"github.com/elchemista/FormRelay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
