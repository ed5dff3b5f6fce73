package main

import (
	"github.com/ssargent/skydb/cmd/sky/cmd"
)

func main() {
	cmd.Execute()
}
