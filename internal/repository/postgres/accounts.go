package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"identity-service/internal/config"
	"identity-service/internal/models"
	"identity-service/internal/util"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// AccountRepository persists account records keyed by email and
// resolves region references.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateStatus(ctx context.Context, email string, status models.Status) (*models.Account, error)
	UpdateRole(ctx context.Context, accountID int64, role models.Role) (*models.Account, error)
	FindRegion(ctx context.Context, regionID int64) (*models.Region, error)
	ListByRegion(ctx context.Context, regionID int64) ([]*models.Account, error)
	ListAll(ctx context.Context) ([]*models.Account, error)
	HealthCheck(ctx context.Context) error
}

// Store implements AccountRepository on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ AccountRepository = (*Store)(nil)

// Open connects to PostgreSQL using the pgx stdlib driver.
func Open(cfg *config.PostgresConfig) (*Store, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	util.Info("Postgres store initialized",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle. Used by tests.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

const accountColumns = `id, first_name, last_name, email, password_hash, role, picture, year, region_id, status, created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash,
		&a.Role, &a.Picture, &a.Year, &a.RegionID, &a.Status,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where email = $1`, email)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return account, nil
}

func (s *Store) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into accounts(first_name, last_name, email, password_hash, role, picture, year, region_id, status, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
		returning `+accountColumns,
		account.FirstName, account.LastName, account.Email, account.PasswordHash,
		account.Role, account.Picture, account.Year, account.RegionID, account.Status,
	)

	created, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return created, nil
}

func (s *Store) UpdateStatus(ctx context.Context, email string, status models.Status) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		update accounts set status = $2, updated_at = now()
		where email = $1
		returning `+accountColumns,
		email, status,
	)

	updated, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update account status: %w", err)
	}
	return updated, nil
}

func (s *Store) UpdateRole(ctx context.Context, accountID int64, role models.Role) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		update accounts set role = $2, updated_at = now()
		where id = $1
		returning `+accountColumns,
		accountID, role,
	)

	updated, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update account role: %w", err)
	}
	return updated, nil
}

func (s *Store) FindRegion(ctx context.Context, regionID int64) (*models.Region, error) {
	var region models.Region
	err := s.db.QueryRowContext(ctx,
		`select id, name from regions where id = $1`, regionID,
	).Scan(&region.ID, &region.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find region: %w", err)
	}
	return &region, nil
}

func (s *Store) ListByRegion(ctx context.Context, regionID int64) ([]*models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+accountColumns+` from accounts where region_id = $1 order by id asc`, regionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts by region: %w", err)
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func (s *Store) ListAll(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+accountColumns+` from accounts order by id asc`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func collectAccounts(rows *sql.Rows) ([]*models.Account, error) {
	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
