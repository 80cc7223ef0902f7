package database

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize opens the MTGJSON AllPrintings sqlite snapshot read-only. The
// chat core never writes to it; there is no migration step.
func Initialize(dbPath string) error {
	var err error
	DB, err = gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=ro", dbPath)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to open card database: %w", err)
	}

	if !DB.Migrator().HasTable("cards") {
		return fmt.Errorf("card database %s has no cards table; expected an MTGJSON AllPrintings snapshot", dbPath)
	}

	var count int64
	if err := DB.Table("cards").Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count cards: %w", err)
	}
	log.Printf("Card database connected: %d printings", count)

	return nil
}

func GetDB() *gorm.DB {
	return DB
}
