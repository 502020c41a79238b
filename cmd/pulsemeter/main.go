// Command pulsemeter measures average RF power with a pulse sensor reached
// through an ethernet bridge, following the recommended SCPI procedure.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
