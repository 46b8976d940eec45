package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"netsentinel/pkg/model"
)

// MySQLStore keeps samples in MySQL through gorm, for agents that report into a shared database.
type MySQLStore struct {
	db *gorm.DB
}

// OpenMySQL connects, creates the database if missing, and migrates the samples table.
func OpenMySQL(dsn string) (*MySQLStore, error) {
	dsnCfg, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	dsn = dsnCfg.FormatDSN()
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	db, err := gorm.Open(mysql.Open(dsn), cfg)
	if err != nil {
		if !strings.Contains(err.Error(), "Unknown database") {
			return nil, err
		}
		if cerr := createDatabase(dsnCfg); cerr != nil {
			return nil, fmt.Errorf("create database failed: %w", cerr)
		}
		if db, err = gorm.Open(mysql.Open(dsn), cfg); err != nil {
			return nil, err
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(5)
	if err := db.AutoMigrate(&model.Sample{}); err != nil {
		return nil, fmt.Errorf("migrate samples: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Append(ctx context.Context, sample *model.Sample) error {
	sample.ID = 0
	sample.Timestamp = mysqlTimestamp(sample.Timestamp)
	if err := s.db.WithContext(ctx).Create(sample).Error; err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

func (s *MySQLStore) QueryRecent(ctx context.Context, limit int) ([]model.Sample, error) {
	out := []model.Sample{}
	if limit <= 0 {
		return out, nil
	}
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	return out, nil
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// normalizeDSN forces time parsing in UTC; DATETIME columns cannot be scanned into time.Time otherwise.
func normalizeDSN(dsn string) (*mysqldriver.Config, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg, nil
}

// mysqlTimestamp matches the datetime(6) column so the caller's copy equals the stored row.
func mysqlTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func createDatabase(dsnCfg *mysqldriver.Config) error {
	cfg := dsnCfg.Clone()
	dbname := cfg.DBName
	cfg.DBName = ""
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` DEFAULT CHARACTER SET utf8mb4", dbname))
	return err
}
