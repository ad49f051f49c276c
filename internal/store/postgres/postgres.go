package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/logger"
	"github.com/jayhereforshort/haulharbor/internal/store"
	"github.com/jayhereforshort/haulharbor/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

var tracer = otel.Tracer("haulharbor/store/postgres")

type Store struct {
	pool *pgxpool.Pool
	sq   squirrel.StatementBuilderType
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 30
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{
		pool: pool,
		sq:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// runTx runs fn in a serializable transaction. The transaction is rolled back
// when fn fails, and a serialization failure surfaces as store.ErrBusy.
func (s *Store) runTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(
			attribute.String("tx.op", op),
			attribute.String("tx.isolation", string(pgx.Serializable)),
		))
	defer span.End()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return store.Persist(op, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(context.Background()); rbErr != nil {
			logger.Error(ctx, "rollback failed", "op", op, "error", rbErr, "original_error", err)
		}
		span.RecordError(err)
		return mapErr(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return mapErr(op, err)
	}
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, account domain.Account, owner string) (*domain.Account, error) {
	owner = normalizeUsername(owner)
	if account.ID == "" {
		account.ID = xid.New()
	}
	if account.Plan == "" {
		account.Plan = domain.PlanFree
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	err := s.runTx(ctx, "create account", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO accounts (id, name, plan, created_at) VALUES ($1, $2, $3, $4)
		`, account.ID, account.Name, account.Plan, account.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO memberships (account_id, username, role, created_at) VALUES ($1, $2, $3, $4)
		`, account.ID, owner, domain.RoleOwner, account.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	var account domain.Account
	err := pgxscan.Get(ctx, s.pool, &account, `
		SELECT id::text AS id, name, plan, created_at FROM accounts WHERE id = $1
	`, accountID)
	if err != nil {
		return nil, mapErr("get account", err)
	}
	return &account, nil
}

func (s *Store) ListMemberships(ctx context.Context, username string) ([]domain.AccountMembership, error) {
	var rows []struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		Plan      string    `db:"plan"`
		CreatedAt time.Time `db:"created_at"`
		Role      string    `db:"role"`
	}
	err := pgxscan.Select(ctx, s.pool, &rows, `
		SELECT a.id::text AS id, a.name, a.plan, a.created_at, m.role
		FROM memberships m
		JOIN accounts a ON a.id = m.account_id
		WHERE m.username = $1
		ORDER BY m.created_at, a.id
	`, normalizeUsername(username))
	if err != nil {
		return nil, mapErr("list memberships", err)
	}

	out := make([]domain.AccountMembership, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AccountMembership{
			Account: domain.Account{ID: r.ID, Name: r.Name, Plan: r.Plan, CreatedAt: r.CreatedAt},
			Role:    r.Role,
		})
	}
	return out, nil
}

func (s *Store) GetMembership(ctx context.Context, accountID string, username string) (*domain.Membership, error) {
	var m domain.Membership
	err := pgxscan.Get(ctx, s.pool, &m, `
		SELECT account_id::text AS account_id, username, role, created_at
		FROM memberships
		WHERE account_id = $1 AND username = $2
	`, accountID, normalizeUsername(username))
	if err != nil {
		return nil, mapErr("get membership", err)
	}
	return &m, nil
}

func (s *Store) AddMembership(ctx context.Context, membership domain.Membership) error {
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO memberships (account_id, username, role, created_at) VALUES ($1, $2, $3, $4)
	`, membership.AccountID, normalizeUsername(membership.Username), membership.Role, membership.CreatedAt)
	if isUniqueViolation(err) {
		return store.Invalid("username", "already a member of this account")
	}
	return mapErr("add membership", err)
}

func (s *Store) CountMembers(ctx context.Context, accountID string) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM memberships WHERE account_id = $1`, accountID).Scan(&count); err != nil {
		return 0, mapErr("count members", err)
	}
	return count, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := normalizeUsername(user.Username)
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Invalid("username", "username and password are required")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_users (username, password, active, created_at) VALUES ($1, $2, true, $3)
	`, username, user.Password, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.Invalid("username", "already taken")
	}
	return mapErr("create user", err)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	var users []domain.UserAccount
	err := pgxscan.Select(ctx, s.pool, &users, `
		SELECT username, password, active, created_at FROM app_users ORDER BY username
	`)
	if err != nil {
		return nil, mapErr("list users", err)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = normalizeUsername(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return store.Invalid("password", "is required")
	}
	tag, err := s.pool.Exec(ctx, `UPDATE app_users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return mapErr("update user password", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// mapErr turns driver errors into store errors. Lookups by a malformed id and
// references to missing rows are reported as not found.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if pgxscan.NotFound(err) || errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503", "22P02":
			return fmt.Errorf("%s: %w", op, store.ErrNotFound)
		case "40001", "40P01":
			return fmt.Errorf("%s: %w", op, store.ErrBusy)
		case "23514":
			return store.Invalid(pgErr.ColumnName, pgErr.Message)
		}
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrBusy) || errors.Is(err, store.ErrEntitlement) {
		return err
	}
	return store.Persist(op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
