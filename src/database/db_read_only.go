package database

import (
	"fmt"

	"tradingbot/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReadOnlyDB serves reporting queries: daily profit for the streak gate and
// the status endpoint. The database user for this connection should have
// SELECT-only permissions.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB initializes the read-only database connection. Without
// DATABASE_URL_READONLY it shares MainDB, which must be initialized first.
func InitReadOnlyDB() error {
	config := GetConfig()

	if config.DatabaseURLReadOnly == "" {
		if MainDB == nil {
			return fmt.Errorf("%w: read-only database requested before MainDB", model.ErrConfiguration)
		}
		ReadOnlyDB = MainDB
		logrus.Info("[ReadOnlyDB] sharing MainDB connection")
		return nil
	}

	db, err := Open(config, config.DatabaseURLReadOnly)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from ReadOnlyDB: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping ReadOnlyDB: %w", err)
	}

	if config.Driver == DriverPostgres {
		var dbName, schema string
		if err := db.
			Raw("SELECT current_database(), current_schema()").
			Row().
			Scan(&dbName, &schema); err != nil {
			return fmt.Errorf("failed to query current db/schema on ReadOnlyDB: %w", err)
		}
		logrus.WithFields(map[string]interface{}{"dbName": dbName, "schema": schema}).Info("[ReadOnlyDB] connected")
	}

	var count int64
	if err := db.Model(&model.TradeRecord{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to access trades: %w", err)
	}

	logrus.WithFields(map[string]interface{}{"count": count}).Info("[ReadOnlyDB] trades reachable")

	ReadOnlyDB = db

	return nil
}
