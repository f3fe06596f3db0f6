// The main package for the quote-crawler executable.
package main

import (
	"github.com/JakeFAU/quote-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
