package main

import (
	"os"

	"sql-intelligence/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
