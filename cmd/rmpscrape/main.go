package main

import "github.com/openswoop/rmpscrape/cmd"

func main() {
	cmd.Execute()
}
