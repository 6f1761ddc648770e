package db

import (
	"context"

	"github.com/dailyyoga/objsync/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type defaultDatabase struct {
	logger logger.Logger
	db     *gorm.DB
}

// NewMySQL opens a pooled MySQL connection and pings it
func NewMySQL(log logger.Logger, cfg *Config) (Database, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	return open(log, cfg, mysql.Open(dsn))
}

func open(log logger.Logger, cfg *Config, dialector gorm.Dialector) (*defaultDatabase, error) {
	if log == nil {
		log = logger.NewNop()
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   newGormLogger(log, cfg.LogLevel, cfg.SlowThreshold),
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, ErrConnection(err)
	}
	sqldb, err := gdb.DB()
	if err != nil {
		return nil, ErrConnection(err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqldb.Ping(); err != nil {
		_ = sqldb.Close()
		return nil, ErrConnection(err)
	}

	log.Info("database connection established",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)
	return &defaultDatabase{logger: log, db: gdb}, nil
}

func (d *defaultDatabase) DB() (*gorm.DB, error) {
	if d.db == nil {
		return nil, ErrConnectionNotEstablished
	}
	return d.db, nil
}

func (d *defaultDatabase) Migrate(ctx context.Context, models ...any) error {
	if d.db == nil {
		return ErrConnectionNotEstablished
	}
	if err := d.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return ErrMigrate(err)
	}
	d.logger.Info("database migrated", zap.Int("models", len(models)))
	return nil
}

func (d *defaultDatabase) Ping(ctx context.Context) error {
	sqldb, err := d.db.DB()
	if err != nil {
		return ErrConnection(err)
	}
	return sqldb.PingContext(ctx)
}

func (d *defaultDatabase) Close() error {
	sqldb, err := d.db.DB()
	if err != nil {
		return ErrConnection(err)
	}
	return sqldb.Close()
}
