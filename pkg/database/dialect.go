package database

import (
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/student-records-api/pkg/config"
)

// Dialect captures the few places where MySQL and PostgreSQL statements differ.
type Dialect struct {
	name      string
	quote     string
	bindType  int
	returning bool
}

// DialectFor returns the dialect for a configured driver name. Unknown names fall back to MySQL.
func DialectFor(driver string) Dialect {
	switch driver {
	case config.DriverPostgres:
		return Dialect{name: config.DriverPostgres, quote: `"`, bindType: sqlx.DOLLAR, returning: true}
	default:
		return Dialect{name: config.DriverMySQL, quote: "`", bindType: sqlx.QUESTION}
	}
}

// Name reports the driver name of the dialect.
func (d Dialect) Name() string {
	return d.name
}

// Quote wraps an identifier so camelCase and keyword column names survive both engines.
func (d Dialect) Quote(ident string) string {
	return d.quote + strings.ReplaceAll(ident, d.quote, d.quote+d.quote) + d.quote
}

// Rebind converts `?` placeholders into the dialect's bind style.
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(d.bindType, query)
}

// InsertReturnsID reports whether generated keys must be read through RETURNING.
func (d Dialect) InsertReturnsID() bool {
	return d.returning
}
