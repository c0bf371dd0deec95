package main

import (
	"fmt"
	"os"
)

func main() {
	s := &session{}
	if err := run(newRootCmd(s), s, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
