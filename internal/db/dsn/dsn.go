// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"github.com/campus-sms/campus-sms/internal/config"
)

// Create builds the sqlite Data Source Name from the configuration.
func Create(dbCfg *config.Config) string {
	out := dbCfg.DB.Path
	if dbCfg.DB.Extras != "" {
		out += "?" + dbCfg.DB.Extras
	}

	return out
}
