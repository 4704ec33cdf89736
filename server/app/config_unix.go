//go:build !windows
// +build !windows

package app

const (
	defaultSQLiteConnectionString = "file:/var/lib/trigger-engine/db/sqlite.db?cache=shared"
)
