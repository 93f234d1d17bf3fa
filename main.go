package main

import "github.com/testbridge-dev/testbridge-runner/pkg/cli"

func main() {
	cli.Execute()
}
