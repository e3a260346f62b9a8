// Command fdwledger inspects and edits the FDW stats ledger of a Postgres
// database.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
