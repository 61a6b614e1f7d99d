// Command relsign signs and publishes release artifacts using ambient CI
// credentials.
package main

import (
	"os"

	"github.com/meigma/relsign/cmd/relsign/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
