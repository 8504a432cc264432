// Package store is the durable CRUD layer over job definitions and execution
// history. The database is the single source of truth; nothing in this
// process holds an authoritative in-memory copy.
package store

import "errors"

var ErrNotFound = errors.New("not found")
