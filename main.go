// The main package for the feedlint executable.
package main

import (
	"github.com/feedlint/feedlint/cmd"
)

func main() {
	cmd.Execute()
}
