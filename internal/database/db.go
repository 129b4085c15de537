package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"bastportal/internal/model"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Options struct {
	Debug         bool
	RunMigrations bool
	MigrationsDir string
}

// NewConnection initializes a new connection pool using GORM and brings the
// schema up to date, either with the SQL migrations or with AutoMigrate.
func NewConnection(dsn string, opts Options) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig(opts.Debug))
	if err != nil {
		return nil, err
	}

	if opts.RunMigrations {
		if err := RunSQLMigrations(dsn, opts.MigrationsDir); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Println("[DB] SQL migrations applied")
		return db, nil
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// GormConfig is the gorm configuration shared by the server and tests.
// Driver errors are translated so unique violations surface as
// gorm.ErrDuplicatedKey.
func GormConfig(debug bool) *gorm.Config {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	return &gorm.Config{
		TranslateError: true,
		Logger: logger.New(
			log.New(os.Stdout, "[DB] ", log.LstdFlags),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  level,
				IgnoreRecordNotFoundError: true,
			},
		),
	}
}

// Models lists every table of the portal, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&model.Vendor{},
		&model.InvoiceType{},
		&model.User{},
		&model.Bast{},
		&model.BastItem{},
		&model.BastSupportingDoc{},
		&model.FakturPajak{},
		&model.SagrReference{},
		&model.Invoice{},
		&model.TrackingLog{},
		&model.AuditLog{},
	}
}

// AutoMigrate creates or updates every table with gorm.
func AutoMigrate(db *gorm.DB) error {
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// RunSQLMigrations executes the migrations in dir using golang-migrate.
func RunSQLMigrations(dsn, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	m, err := migrate.New("file://"+filepath.ToSlash(abs), dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
