package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options tunes SQL logging and the connection pool.
type Options struct {
	LogLevel      logger.LogLevel
	SlowThreshold time.Duration
	MaxIdleConns  int
	MaxOpenConns  int
	MaxLifetime   time.Duration
}

func DefaultOptions() Options {
	return Options{
		LogLevel:      logger.Warn,
		SlowThreshold: time.Second,
		MaxIdleConns:  10,
		MaxOpenConns:  50,
		MaxLifetime:   time.Hour,
	}
}

func newLogger(opts Options) logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             opts.SlowThreshold,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true, // not-found is a normal answer for job and session lookups
			ParameterizedQueries:      true, // chunk text and prompts stay out of the log
			Colorful:                  true,
		},
	)
}

// NewGormDBFromDSN opens Postgres with DefaultOptions.
func NewGormDBFromDSN(dsn string) (*gorm.DB, error) {
	return Open(dsn, DefaultOptions())
}

func Open(dsn string, opts Options) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger(opts),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)

	return db, nil
}
