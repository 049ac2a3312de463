// ada CLI - dynamic-analysis toolkit for recorded application sessions.
package main

import (
	"fmt"
	"os"

	"github.com/getada/ada/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
