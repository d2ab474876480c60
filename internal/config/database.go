// internal/config/database.go
package config

import (
	"fmt"
	"strings"
)

// DSN builds the connection string for the configured driver. Postgres
// sessions run in UTC; exam slots are converted to the exam timezone only
// for display.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		sep := "?"
		if strings.Contains(d.SQLitePath, "?") {
			sep = "&"
		}
		return d.SQLitePath + sep + "_foreign_keys=on&_busy_timeout=5000"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}
