package postgres

import (
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/leanmaker/leanmaker-backend/internal/apperrors"
	"github.com/leanmaker/leanmaker-backend/internal/config"
	"github.com/lib/pq"
)

// Postgres error codes the repositories care about.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqSerializationFail   = "40001"
	pqDeadlockDetected    = "40P01"
)

type Postgres struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  squirrel.StatementBuilderType
}

func NewDB(cfg config.Postgres, log *slog.Logger) (*Postgres, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("can't connect to database: %v", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &Postgres{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

func (p *Postgres) DB() *sqlx.DB {
	return p.db
}

// orDB returns ext when the caller supplied a transaction, otherwise the
// repository's own connection.
func orDB(ext sqlx.ExtContext, db *sqlx.DB) sqlx.ExtContext {
	if ext == nil {
		return db
	}

	return ext
}

// wrapTransient tags retryable postgres errors (serialization failures and
// deadlocks) so the service transaction helper can retry the request once.
func wrapTransient(op string, err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == pqSerializationFail || pqErr.Code == pqDeadlockDetected {
			return fmt.Errorf("%s: %w: %v", op, apperrors.ErrTransientStore, err)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
