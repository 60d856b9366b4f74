// Command ctoidscan scans Certificate Transparency logs for certificates
// whose extension OID set intersects an operator-specified set of OIDs.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
