package main

import "github.com/markdave123-py/studyvault/internal/cli"

func main() {
	cli.Execute()
}
