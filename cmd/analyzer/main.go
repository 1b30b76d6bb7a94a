package main

import "github.com/fluxadm/analyzer/internal/cli"

func main() {
	cli.Execute()
}
