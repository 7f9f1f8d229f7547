package main

import "github.com/mcoot/avalon/internal/cli"

func main() {
	cli.Execute()
}
