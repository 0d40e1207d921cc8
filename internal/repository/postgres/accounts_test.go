package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"identity-service/internal/models"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewStore(db), mock, db
}

var accountCols = []string{
	"id", "first_name", "last_name", "email", "password_hash",
	"role", "picture", "year", "region_id", "status", "created_at", "updated_at",
}

func accountRow(id int64, email string, role models.Role, status models.Status) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(accountCols).
		AddRow(id, "Alice", "Smith", email, "$2a$10$hash", role, "", 2024, int64(1), status, now, now)
}

func TestFindByEmail_Found(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`select .* from accounts where email = \$1`).
		WithArgs("alice@gmail.com").
		WillReturnRows(accountRow(7, "alice@gmail.com", models.RoleUser, models.StatusActive))

	account, err := store.FindByEmail(context.Background(), "alice@gmail.com")
	if err != nil {
		t.Fatalf("FindByEmail error: %v", err)
	}
	if account.ID != 7 || account.Email != "alice@gmail.com" {
		t.Fatalf("unexpected account: %+v", account)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestFindByEmail_NotFound(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`select .* from accounts where email = \$1`).
		WithArgs("nobody@gmail.com").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.FindByEmail(context.Background(), "nobody@gmail.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByEmail = %v, want %v", err, ErrNotFound)
	}
}

func TestFindByEmail_DBError(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`select .* from accounts where email = \$1`).
		WithArgs("alice@gmail.com").
		WillReturnError(errors.New("connection refused"))

	_, err := store.FindByEmail(context.Background(), "alice@gmail.com")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a wrapped infrastructure error, got %v", err)
	}
}

func TestCreate_ReturnsPersistedRow(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`insert into accounts\(.*\)`).
		WithArgs("Alice", "Smith", "alice@gmail.com", "$2a$10$hash",
			models.RoleUser, "", 2024, int64(1), models.StatusOffline).
		WillReturnRows(accountRow(1, "alice@gmail.com", models.RoleUser, models.StatusOffline))

	created, err := store.Create(context.Background(), &models.Account{
		FirstName:    "Alice",
		LastName:     "Smith",
		Email:        "alice@gmail.com",
		PasswordHash: "$2a$10$hash",
		Role:         models.RoleUser,
		Year:         2024,
		RegionID:     1,
		Status:       models.StatusOffline,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("created.ID = %d, want 1", created.ID)
	}
	if created.Status != models.StatusOffline {
		t.Fatalf("created.Status = %q, want %q", created.Status, models.StatusOffline)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateStatus_Activates(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`update accounts set status = \$2`).
		WithArgs("alice@gmail.com", models.StatusActive).
		WillReturnRows(accountRow(7, "alice@gmail.com", models.RoleUser, models.StatusActive))

	updated, err := store.UpdateStatus(context.Background(), "alice@gmail.com", models.StatusActive)
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if updated.Status != models.StatusActive {
		t.Fatalf("status = %q, want %q", updated.Status, models.StatusActive)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`update accounts set status = \$2`).
		WithArgs("nobody@gmail.com", models.StatusActive).
		WillReturnError(sql.ErrNoRows)

	if _, err := store.UpdateStatus(context.Background(), "nobody@gmail.com", models.StatusActive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateStatus = %v, want %v", err, ErrNotFound)
	}
}

func TestUpdateRole_Promotes(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`update accounts set role = \$2`).
		WithArgs(int64(7), models.RoleAdmin).
		WillReturnRows(accountRow(7, "alice@gmail.com", models.RoleAdmin, models.StatusActive))

	updated, err := store.UpdateRole(context.Background(), 7, models.RoleAdmin)
	if err != nil {
		t.Fatalf("UpdateRole error: %v", err)
	}
	if updated.Role != models.RoleAdmin {
		t.Fatalf("role = %q, want %q", updated.Role, models.RoleAdmin)
	}
}

func TestUpdateRole_NotFound(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`update accounts set role = \$2`).
		WithArgs(int64(404), models.RoleAdmin).
		WillReturnError(sql.ErrNoRows)

	if _, err := store.UpdateRole(context.Background(), 404, models.RoleAdmin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateRole = %v, want %v", err, ErrNotFound)
	}
}

func TestFindRegion(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`select id, name from regions where id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "North"))

	region, err := store.FindRegion(context.Background(), 1)
	if err != nil {
		t.Fatalf("FindRegion error: %v", err)
	}
	if region.ID != 1 || region.Name != "North" {
		t.Fatalf("unexpected region: %+v", region)
	}

	mock.ExpectQuery(`select id, name from regions where id = \$1`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	if _, err := store.FindRegion(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindRegion = %v, want %v", err, ErrNotFound)
	}
}

func TestListByRegion(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(accountCols).
		AddRow(int64(1), "Alice", "Smith", "alice@gmail.com", "h1", models.RoleUser, "", 2024, int64(1), models.StatusActive, now, now).
		AddRow(int64(2), "Bob", "Jones", "bob@gmail.com", "h2", models.RoleUser, "", 2023, int64(1), models.StatusOffline, now, now)

	mock.ExpectQuery(`select .* from accounts where region_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	accounts, err := store.ListByRegion(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListByRegion error: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("len(accounts) = %d, want 2", len(accounts))
	}
	if accounts[0].Email != "alice@gmail.com" || accounts[1].Email != "bob@gmail.com" {
		t.Fatalf("unexpected ordering: %q, %q", accounts[0].Email, accounts[1].Email)
	}
}

func TestListByRegion_Empty(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`select .* from accounts where region_id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(accountCols))

	accounts, err := store.ListByRegion(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListByRegion error: %v", err)
	}
	if len(accounts) != 0 {
		t.Fatalf("len(accounts) = %d, want 0", len(accounts))
	}
}

func TestListAll(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`select .* from accounts order by id asc`).
		WillReturnRows(accountRow(1, "alice@gmail.com", models.RoleAdmin, models.StatusActive))

	accounts, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll error: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Role != models.RoleAdmin {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}
}

func TestHealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	mock.ExpectPing()

	if err := store.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck error: %v", err)
	}

	mock.ExpectPing().WillReturnError(errors.New("connection lost"))

	if err := store.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error when ping fails")
	}
}
