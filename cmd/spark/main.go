// Command spark is the command-line front end of the Spark hotkey daemon.
package main

import (
	"context"
	"os"

	"github.com/barryels/Spark/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:]))
}
