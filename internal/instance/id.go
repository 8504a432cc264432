// Package instance derives the identity string a scheduler process registers
// with. The format is hostname:pid so an operator can find the holder of a
// lock from the lock row alone.
package instance

import (
	"fmt"
	"os"
)

func ID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s:%d", hostname, os.Getpid())
}
