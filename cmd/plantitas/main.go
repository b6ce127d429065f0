package main

import "github.com/plantitas/plantitas/internal/cli"

func main() {
	cli.Execute()
}
