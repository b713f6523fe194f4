// The main package for the meteo-crawler executable.
package main

import (
	"github.com/JakeFAU/meteo-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
