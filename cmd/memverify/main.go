// Command memverify indexes JAR and ZIP files through memarchive and checks
// every entry, reporting archives whose structure or payloads are invalid.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
