package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
	"github.com/mattn/go-sqlite3"
)

// AuthStore implements user and session persistence backed by SQLite.
type AuthStore struct {
	db *DB
}

// NewAuthStore creates a new SQLite-backed auth store.
func NewAuthStore(db *DB) *AuthStore {
	return &AuthStore{db: db}
}

// CreateUser inserts a new user. A duplicate email yields domain.ErrEmailExists.
func (s *AuthStore) CreateUser(ctx context.Context, user *domain.User) error {
	attrs, err := json.Marshal(user.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, attributes, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.UserID, user.Email, user.FirstName, user.LastName, string(attrs),
		user.PasswordHash, utc(user.CreatedAt), utc(user.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return domain.ErrEmailExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email (case-insensitive).
func (s *AuthStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

// GetUserByID retrieves a user by ID.
func (s *AuthStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *AuthStore) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, attributes, password_hash, created_at, updated_at
		FROM users WHERE `+where, arg)

	var (
		user  domain.User
		attrs string
	)
	err := row.Scan(&user.UserID, &user.Email, &user.FirstName, &user.LastName, &attrs,
		&user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if attrs != "" && attrs != "null" {
		if err := json.Unmarshal([]byte(attrs), &user.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	return &user, nil
}

// CreateSession inserts a new session.
func (s *AuthStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, user_id, token, client_addr, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.Token, session.ClientAddr,
		utc(session.ExpiresAt), utc(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSessionByToken retrieves a session by its token.
func (s *AuthStore) GetSessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token, client_addr, expires_at, created_at
		FROM auth_sessions WHERE token = ?`, token)

	var session domain.Session
	err := row.Scan(&session.ID, &session.UserID, &session.Token, &session.ClientAddr,
		&session.ExpiresAt, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// DeleteSession removes a session by ID.
func (s *AuthStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM auth_sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now.
func (s *AuthStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM auth_sessions WHERE expires_at <= ?", utc(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
