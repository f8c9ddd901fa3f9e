// internal/config/database.go
package config

import (
	"fmt"
)

// DSN builds the postgres connection string. An empty password is left out
// so local trust-auth setups work without a placeholder.
func (d *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Database, d.SSLMode,
	)
	if d.Password != "" {
		dsn += " password=" + d.Password
	}
	return dsn
}
