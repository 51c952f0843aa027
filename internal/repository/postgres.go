package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/akudrin/ipkeeper/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
}

func NewPostgresStore(dsn, migrationsPath string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := runMigrations(dsn, migrationsPath); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Println("PostgreSQL store initialized successfully")

	return &PostgresStore{pool: pool,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}, nil
}

func runMigrations(dsn, migrationsPath string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database for migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsPath,
		"postgres", driver,
	)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	log.Println("Migrations applied successfully")
	return nil
}

func (p *PostgresStore) Exists(ctx context.Context, ownerID, value string) (bool, error) {
	query, args, err := p.sb.
		Select("1").
		From("ip_addresses").
		Where(squirrel.Eq{"user_id": ownerID}).
		Where(squirrel.Or{
			squirrel.Eq{"ip_address": value},
			squirrel.Eq{"cidr": value},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = p.pool.QueryRow(ctx, query, args...).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query row: %w", err)
	}

	return true, nil
}

func (p *PostgresStore) Insert(ctx context.Context, ownerID, value string, isCIDR bool) (int64, error) {
	column := "ip_address"
	if isCIDR {
		column = "cidr"
	}

	query, args, err := p.sb.
		Insert("ip_addresses").
		Columns("user_id", column).
		Values(ownerID, value).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var id int64
	err = p.pool.QueryRow(ctx, query, args...).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("execute insert: %w", err)
	}

	return id, nil
}

func (p *PostgresStore) DeleteByValue(ctx context.Context, ownerID, value string) (int64, error) {
	query, args, err := p.sb.
		Delete("ip_addresses").
		Where(squirrel.Eq{"user_id": ownerID}).
		Where(squirrel.Or{
			squirrel.Eq{"ip_address": value},
			squirrel.Eq{"cidr": value},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	cmdTag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("execute delete: %w", err)
	}

	return cmdTag.RowsAffected(), nil
}

func (p *PostgresStore) Page(ctx context.Context, offset, limit int) ([]models.AddressRecord, error) {
	query, args, err := p.sb.
		Select("id", "user_id", "COALESCE(ip_address, '')", "COALESCE(cidr, '')").
		From("ip_addresses").
		OrderBy("id ASC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return p.queryRecords(ctx, query, args)
}

func (p *PostgresStore) ScanAll(ctx context.Context) ([]models.AddressRecord, error) {
	query, args, err := p.sb.
		Select("id", "user_id", "COALESCE(ip_address, '')", "COALESCE(cidr, '')").
		From("ip_addresses").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return p.queryRecords(ctx, query, args)
}

func (p *PostgresStore) queryRecords(ctx context.Context, query string, args []interface{}) ([]models.AddressRecord, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := make([]models.AddressRecord, 0)
	for rows.Next() {
		var rec models.AddressRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.IPAddress, &rec.CIDR); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}

func (p *PostgresStore) Count(ctx context.Context) (int64, error) {
	query, args, err := p.sb.
		Select("COUNT(*)").
		From("ip_addresses").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int64
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("query row: %w", err)
	}

	return count, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
