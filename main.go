package main

import "github.com/meridian-data/catalogd/cmd"

func main() {
	cmd.Execute()
}
