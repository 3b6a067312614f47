package database

import (
	"fmt"
	"log"
	"mfs_literacy_backend/internal/config"
	"mfs_literacy_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	return db, nil
}

// Migrate 建表/补列，测试环境用 sqlite 也走同一入口
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Learner{},
		&model.Lesson{},
		&model.EssaySubmission{},
		&model.Evaluation{},
		&model.DifficultyAdjustment{},
		&model.Alert{},
	)
}
