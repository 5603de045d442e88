package config

import (
	"github.com/campus-sms/campus-sms/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Backup    Backup
	Webserver Webserver
}

// Backup implements encrypted backup settings.
type Backup struct {
	Dir       string // root directory for backup storage
	KeepCount int    // number of backups retained by cleanup
}

// Webserver implement webserver settings.
type Webserver struct {
	CleanPath           bool   // use clean path middleware to allow multi slash requests
	DisableRecover      bool   // disable recover middleware
	Domain              string // domain name for the webserver
	Port                int    // listening port for the webserver
	ShutDownTime        int    // wait time for shutdown
	URL                 string // base url for the webserver
	EnableControlAPI    bool   // expose the administrative control endpoints
	AdminToken          string // shared token for remote control requests
	AllowRemoteShutdown bool   // allow shutdown requests from non-loopback clients
}
