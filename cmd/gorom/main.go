package main

import "github.com/sciforge/gorom/internal/cli"

func main() {
	cli.Execute()
}
