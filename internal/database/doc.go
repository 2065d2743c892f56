// Package database provides the connection pool for the recorder's
// PostgreSQL feed archive.
package database
