package config

// DB holds the database configuration settings.
type DB struct {
	Path   string // file path of the sqlite database
	Extras string // extra sqlite connection parameters
}
