package database

import (
	"errors"
	"fmt"

	"github.com/automax/routing/internal/config"
	applog "github.com/automax/routing/internal/logger"
	"github.com/automax/routing/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.DatabaseConfig, log *applog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Database connected", "host", cfg.Host, "dbname", cfg.DBName)
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		// Organization
		&models.Group{},
		&models.GroupReassignment{},
		// Themes and derivation rules
		&models.District{},
		&models.ElementDetail{},
		&models.DerivationDirect{},
		&models.DerivationDistrict{},
		&models.DerivationPolygon{},
		// Record cards
		&models.Ubication{},
		&models.UbicationPolygon{},
		&models.Applicant{},
		&models.ResolutionType{},
		&models.RecordCard{},
		&models.RecordCardResolution{},
		&models.RecordCardStateHistory{},
		&models.RecordCardReassignment{},
		&models.RecordCardComment{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Seed inserts the reference rows every installation needs. Existing rows are
// left untouched.
func Seed(db *gorm.DB) error {
	resolutionTypes := []models.ResolutionType{
		{ID: 1, Description: "Resolved", CanClaimInsideAns: true},
		{ID: 2, Description: "Not applicable", CanClaimInsideAns: true},
		{ID: 3, Description: "Scheduled", CanClaimInsideAns: false},
		{ID: 4, Description: "Derived to another administration", CanClaimInsideAns: false},
	}
	for _, rt := range resolutionTypes {
		var existing models.ResolutionType
		err := db.First(&existing, "id = ?", rt.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&rt).Error; err != nil {
				return fmt.Errorf("failed to create resolution type %d: %w", rt.ID, err)
			}
		} else if err != nil {
			return err
		}
	}

	districts := []string{
		"Ciutat Vella", "Eixample", "Sants-Montjuic", "Les Corts", "Sarria-Sant Gervasi",
		"Gracia", "Horta-Guinardo", "Nou Barris", "Sant Andreu", "Sant Marti",
	}
	for i, name := range districts {
		district := models.District{ID: uint(i + 1), Name: name}
		var existing models.District
		err := db.First(&existing, "id = ?", district.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&district).Error; err != nil {
				return fmt.Errorf("failed to create district %s: %w", name, err)
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
