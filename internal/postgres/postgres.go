package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"mathengine/internal/models"
	pgmigrations "mathengine/internal/postgres/migrations"
)

var ErrNoURL = errors.New("postgres url not configured")

// Migrate применяет миграции схемы истории ответов
func Migrate(ctx context.Context, url string) error {
	if url == "" {
		return ErrNoURL
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(url)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("migrator init: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if group.IsZero() {
		log.Printf("Миграции postgres: нечего применять")
	} else {
		log.Printf("Миграции postgres применены: %s", group)
	}
	return nil
}

// AnswerStore хранит историю ответов в Postgres
type AnswerStore struct {
	pool *pgxpool.Pool
}

func NewAnswerStore(pool *pgxpool.Pool) *AnswerStore {
	return &AnswerStore{pool: pool}
}

// Connect открывает пул соединений
func Connect(ctx context.Context, url string) (*AnswerStore, error) {
	if url == "" {
		return nil, ErrNoURL
	}
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewAnswerStore(pool), nil
}

func (s *AnswerStore) Close() {
	s.pool.Close()
}

func (s *AnswerStore) SaveAnswer(ctx context.Context, a models.Answer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO answers (id, result, completed_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET result = EXCLUDED.result, completed_at = EXCLUDED.completed_at`,
		a.ID, a.Result, a.CompletedAt)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// ListAnswers возвращает последние ответы, новые первыми; limit <= 0 - все
func (s *AnswerStore) ListAnswers(ctx context.Context, limit int) ([]models.Answer, error) {
	query := `SELECT id, result, completed_at FROM answers ORDER BY completed_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.Result, &a.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
