// Command ocrserve post-processes text detection/recognition engine output
// into structured results, either as an HTTP server or as a one-shot CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
