// Command storytotest turns user stories into validated TypeScript tests.
package main

import (
	"os"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
