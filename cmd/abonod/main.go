package main

import "github.com/obrapay/abono/internal/cli"

func main() {
	cli.Execute()
}
