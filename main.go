package main

import (
	"paper-trader/internal/cli"
)

func main() {
	cli.Execute()
}
