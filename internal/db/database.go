package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/djpki/ejbca-rest-gateway/internal/alogger"
	"github.com/djpki/ejbca-rest-gateway/internal/common"
)

// DB is the audit store. Every REST request and every remote dispatch is
// recorded here.
type DB struct {
	conn   *gorm.DB
	logger common.Logger
}

var models = []interface{}{
	&RequestLog{},
	&DispatchLog{},
}

// NewDB opens the audit database (SQLite or PostgreSQL) and migrates the
// schema.
func NewDB(dbType string, dsn string, logger common.Logger) (*DB, error) {
	gormConfig := &gorm.Config{
		Logger: alogger.NewGormLogger(logger),
	}

	var conn *gorm.DB
	var err error
	switch dbType {
	case "postgres":
		conn, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case "sqlite":
		conn, err = gorm.Open(sqlite.Open(dsn+`?_journal_mode=WAL`), gormConfig)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", dbType, err)
	}

	database := &DB{conn: conn, logger: logger.With("component", "db")}
	if err := database.migrate(); err != nil {
		return nil, err
	}

	logger.Infow("audit database ready", "type", dbType)
	return database, nil
}

func (db *DB) migrate() error {
	for _, model := range models {
		if err := db.conn.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrating %T: %w", model, err)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create inserts a new record.
func (db *DB) Create(record interface{}) error {
	return db.conn.Create(record).Error
}
