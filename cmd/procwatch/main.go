// Command procwatch is a Darwin process supervisor: it runs a single child
// command under a wall-clock or active-time deadline, escalating signals
// if the child refuses to exit, with optional CPU throttling, resource
// limits, an on-timeout hook, retry-with-backoff, and JSON reporting.
package main

import (
	"fmt"
	"os"
)

func main() {
	code, err := Execute(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}
