package main

import "hmdoc/internal/cli"

func main() {
	cli.Execute()
}
