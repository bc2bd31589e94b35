// Command deliveryctl is the operator CLI: schema migration, demo seeding,
// template export, file uploads and manual reconciliation.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
