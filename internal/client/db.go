package client

import (
	"fmt"
	"strings"
	"time"

	"polar-billing-bridge/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDatabase connects to the store and migrates the mirror tables.
// "sqlite:<dsn>", "file:<path>" and "*.db" select SQLite; anything else is a
// MySQL DSN.
func OpenDatabase(databaseURL string) (*gorm.DB, error) {
	dialector, isSQLite := dialectorFor(databaseURL)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if isSQLite {
		// single writer; transactions queue instead of failing with SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		// Connection pool (important for webhooks)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := db.AutoMigrate(
		&model.Product{},
		&model.Subscription{},
		&model.Order{},
		&model.Benefit{},
		&model.BenefitGrant{},
		&model.Customer{},
		&model.User{},
		&model.WebhookEvent{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func dialectorFor(databaseURL string) (gorm.Dialector, bool) {
	if dsn, ok := strings.CutPrefix(databaseURL, "sqlite:"); ok {
		return sqlite.Open(dsn), true
	}
	if strings.HasPrefix(databaseURL, "file:") || strings.HasSuffix(databaseURL, ".db") {
		return sqlite.Open(databaseURL), true
	}
	return mysql.Open(databaseURL), false
}
