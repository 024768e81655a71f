package main

import "github.com/mwinfie/sonar-coldfusion/internal/cli"

func main() {
	cli.Execute()
}
