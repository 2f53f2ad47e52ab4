// Package storage owns the tailor shop's SQLite file: schema migrations,
// generic statement execution, and typed per-entity repositories.
package storage
