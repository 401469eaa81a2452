package main

import (
	"os"

	"github.com/OpenTraceLab/labctl/cmd/labctl/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
