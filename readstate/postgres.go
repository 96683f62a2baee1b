package readstate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const table = "read_articles"

// PostgresStore persists read state in the read_articles table
type PostgresStore struct {
	db *sql.DB
}

func connectionString(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)
}

// Open connects to PostgreSQL with a small shared pool
func Open(host string, port int, user, password, dbname string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString(host, port, user, password, dbname))
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Hour)

	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) MarkRead(ctx context.Context, articleId string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	query, args := markReadQuery(articleId, time.Now().UTC())
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsRead(ctx context.Context, articleId string) (bool, error) {
	query, args := isReadQuery(articleId)

	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query error: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ReadSet(ctx context.Context, articleIds []string) (map[string]bool, error) {
	set := map[string]bool{}
	if len(articleIds) == 0 {
		return set, nil
	}

	query, args := readSetQuery(articleIds)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		set[id] = true
	}
	return set, rows.Err()
}

func (s *PostgresStore) Tidy(ctx context.Context, olderThan time.Time) (int64, error) {
	query, args := tidyQuery(olderThan)

	log.WithFields(log.Fields{
		"sql":  query,
		"args": args,
	}).Info("Tidying read state")

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete error: %w", err)
	}
	return result.RowsAffected()
}

func markReadQuery(articleId string, at time.Time) (string, []interface{}) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table).Cols("article_id", "read_at").Values(articleId, at)
	ib.SQL("ON CONFLICT (article_id) DO NOTHING")
	return ib.Build()
}

func isReadQuery(articleId string) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("1").From(table).Where(sb.Equal("article_id", articleId)).Limit(1)
	return sb.Build()
}

func readSetQuery(articleIds []string) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("article_id").From(table).Where(sb.In("article_id", lo.ToAnySlice(lo.Uniq(articleIds))...))
	return sb.Build()
}

func tidyQuery(olderThan time.Time) (string, []interface{}) {
	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom(table).Where(db.LessThan("read_at", olderThan))
	return db.Build()
}
