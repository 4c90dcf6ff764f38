package main

import "buildctl/cmd/cli"

func main() {
	cli.Execute()
}
