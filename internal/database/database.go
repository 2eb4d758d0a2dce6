package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"golang.org/x/crypto/bcrypt"

	"mathengine/internal/models"
)

var ErrUserExists = errors.New("user already exists")

// DB - хранилище на sqlite: пользователи, запланированная работа и
// история ответов
type DB struct {
	db *sql.DB
}

// Open открывает (или создает) базу по пути path
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть базу данных: %w", err)
	}
	// sqlite не любит параллельную запись
	db.SetMaxOpenConns(1)

	d := &DB{db: db}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	log.Printf("База данных открыта: %s", path)
	return d, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) createTables() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			login TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы users: %w", err)
	}

	_, err = d.db.Exec(`
		CREATE TABLE IF NOT EXISTS scheduled_work (
			id TEXT PRIMARY KEY,
			tag TEXT NOT NULL,
			first_operand REAL NOT NULL,
			second_operand REAL NOT NULL,
			operator TEXT NOT NULL,
			delay_seconds INTEGER NOT NULL,
			not_before INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы scheduled_work: %w", err)
	}

	_, err = d.db.Exec(`
		CREATE TABLE IF NOT EXISTS answers (
			id TEXT PRIMARY KEY,
			result TEXT NOT NULL,
			completed_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы answers: %w", err)
	}

	return d.applyMigrations()
}

// applyMigrations добавляет столбцы, которых не было в ранних версиях схемы
func (d *DB) applyMigrations() error {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('answers') WHERE name='completed_at'").Scan(&count)
	if err != nil {
		return fmt.Errorf("ошибка проверки столбца completed_at: %w", err)
	}
	if count == 0 {
		_, err = d.db.Exec(`ALTER TABLE answers ADD COLUMN completed_at INTEGER NOT NULL DEFAULT 0`)
		if err != nil {
			return fmt.Errorf("ошибка добавления столбца completed_at: %w", err)
		}
	}
	return nil
}

// CreateUser создает пользователя с хешированным паролем
func (d *DB) CreateUser(ctx context.Context, login, password string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE login = ?", login).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка проверки существования пользователя: %w", err)
	}
	if count > 0 {
		return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	result, err := d.db.ExecContext(ctx, "INSERT INTO users (login, password) VALUES (?, ?)", login, string(hashedPassword))
	if err != nil {
		return 0, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения ID пользователя: %w", err)
	}
	return int(id), nil
}

// GetUser возвращает nil без ошибки, если пользователь не найден
func (d *DB) GetUser(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	err := d.db.QueryRowContext(ctx, "SELECT id, login, password FROM users WHERE login = ?", login).
		Scan(&user.ID, &user.Login, &user.Password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return &user, nil
}

// CheckPasswordHash сравнивает пароль и хеш пароля
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (d *DB) SaveWork(ctx context.Context, w models.Work) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO scheduled_work (id, tag, first_operand, second_operand, operator, delay_seconds, not_before)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Tag, w.FirstOperand, w.SecondOperand, string(w.Operator), w.DelaySeconds, w.NotBefore.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения работы: %w", err)
	}
	return nil
}

func (d *DB) DeleteWork(ctx context.Context, id string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM scheduled_work WHERE id = ?", id); err != nil {
		return fmt.Errorf("ошибка удаления работы: %w", err)
	}
	return nil
}

func (d *DB) DeleteWorkByTag(ctx context.Context, tag string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM scheduled_work WHERE tag = ?", tag); err != nil {
		return fmt.Errorf("ошибка удаления работы по тегу: %w", err)
	}
	return nil
}

// ListWork возвращает работу в порядке срока выполнения
func (d *DB) ListWork(ctx context.Context) ([]models.Work, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, tag, first_operand, second_operand, operator, delay_seconds, not_before
		 FROM scheduled_work ORDER BY not_before`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения работы: %w", err)
	}
	defer rows.Close()

	var works []models.Work
	for rows.Next() {
		var w models.Work
		var op string
		var notBefore int64
		if err := rows.Scan(&w.ID, &w.Tag, &w.FirstOperand, &w.SecondOperand, &op, &w.DelaySeconds, &notBefore); err != nil {
			return nil, fmt.Errorf("ошибка чтения работы: %w", err)
		}
		w.Operator = models.Operator(op)
		w.NotBefore = time.Unix(0, notBefore)
		works = append(works, w)
	}
	return works, rows.Err()
}

func (d *DB) SaveAnswer(ctx context.Context, a models.Answer) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO answers (id, result, completed_at) VALUES (?, ?, ?)",
		a.ID, a.Result, a.CompletedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения ответа: %w", err)
	}
	return nil
}

// ListAnswers возвращает последние limit ответов, новые первыми.
// limit <= 0 означает без ограничения.
func (d *DB) ListAnswers(ctx context.Context, limit int) ([]models.Answer, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, result, completed_at FROM answers ORDER BY completed_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ответов: %w", err)
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		var a models.Answer
		var completedAt int64
		if err := rows.Scan(&a.ID, &a.Result, &completedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
		}
		a.CompletedAt = time.Unix(0, completedAt)
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
