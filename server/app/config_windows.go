//go:build windows
// +build windows

package app

const (
	defaultSQLiteConnectionString = "file:C:\\ProgramData\\trigger-engine\\db\\sqlite.db?cache=shared"
)
