package db

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stywzn/qdashboard/internal/model"
)

var ErrEmptyDSN = errors.New("mysql dsn is required")

// Open 连接 MySQL 并同步表结构
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, ErrEmptyDSN
	}

	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// Migrate 自动建表
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&model.AnalysisTask{}, &model.NetworkSnapshot{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
