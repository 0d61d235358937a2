package backend

import (
	"errors"
	"fmt"
	"slices"

	"hamyon/internal/config"
	"hamyon/internal/storage"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	c := Config{
		Driver:       storage.Driver(appConfig.DBDriver),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		MySQLDSN:     appConfig.MySQLDSN,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID:   appConfig.GoogleSpreadsheetID,
		GoogleSheetName:       appConfig.GoogleSheetName,
		GoogleCredentialsFile: appConfig.GoogleCredentialsFile,
		GoogleCredentialsJSON: appConfig.GoogleCredentialsJSON,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !slices.Contains(Drivers(), c.Driver) {
		return fmt.Errorf("invalid database driver: %q", c.Driver)
	}

	switch c.Driver {
	case storage.DriverSQLite:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for the sqlite driver")
		}
	case storage.DriverMySQL:
		if c.MySQLDSN == "" {
			return errors.New("MySQL DSN is required for the mysql driver")
		}
	}

	if c.RequireBroker && c.AMQPURL == "" {
		return errors.New("AMQP URL is required")
	}
	if c.GoogleSpreadsheetID != "" && c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
		return errors.New("Google credentials file or JSON is required when a spreadsheet is configured")
	}
	return nil
}

// Drivers returns all supported database drivers
func Drivers() []storage.Driver {
	return []storage.Driver{storage.DriverSQLite, storage.DriverMySQL}
}
