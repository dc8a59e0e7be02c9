// Package main provides the sqlbatch command.
package main

import (
	"os"

	"github.com/seatown/sqlbatch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
