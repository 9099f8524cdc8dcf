//go:build !sqlite3_cgo

package db

import (
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const (
	driverID   = "ncruces/go-sqlite3"
	driverName = "sqlite3"
)

// fileDSN opens path read-write, creating it if needed. Pure Go, no cgo required.
func fileDSN(path string) string {
	return fmt.Sprintf("file:%s?mode=rwc&_txlock=immediate", path)
}
