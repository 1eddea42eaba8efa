// The main package for the tracker executable.
package main

import (
	_ "time/tzdata"

	"github.com/JakeFAU/bequiet-tracker/cmd"
)

func main() {
	cmd.Execute()
}
