package database

import (
	"fmt"

	"tuteck_exam_backend/internal/config"
	"tuteck_exam_backend/internal/model"
	applog "tuteck_exam_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// defaultRoles seeds the five-tier ladder the hierarchy resolver expects.
var defaultRoles = []model.Role{
	{Name: "admin", Level: 1, Description: "Sees every user and result"},
	{Name: "director", Level: 2, Description: "Manages managers; may revoke certificates"},
	{Name: "manager", Level: 3, Description: "Manages supervisors and their teams"},
	{Name: "supervisor", Level: 4, Description: "Sees direct and indirect reports"},
	{Name: "candidate", Level: 5, Description: "Takes assessments"},
}

func DSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=UTC",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)
}

// InitDB opens the connection and migrates the schema. In release mode the
// migration only runs when it was asked for on the command line.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(DSN(&cfg.Database)), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	applog.Log.Info("Database connection established", zap.String("host", cfg.Database.Host))

	if cfg.Server.Mode == "release" && !cfg.ForceMigrate {
		applog.Log.Info("Skipping migration in release mode")
		return db, nil
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every engine table and seeds the default roles.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Role{},
		&model.User{},
		&model.Survey{},
		&model.Section{},
		&model.Question{},
		&model.Option{},
		&model.SurveyAssignment{},
		&model.TestSession{},
		&model.Answer{},
		&model.TestResult{},
		&model.SectionScore{},
		&model.Certificate{},
		&model.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	applog.Log.Info("Database migration completed")

	// 默认角色
	var count int64
	if err := db.Model(&model.Role{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		for _, r := range defaultRoles {
			role := r
			if err := db.Create(&role).Error; err != nil {
				return fmt.Errorf("seed role %s: %w", role.Name, err)
			}
		}
		applog.Log.Info("Seeded default roles", zap.Int("count", len(defaultRoles)))
	}
	return nil
}
