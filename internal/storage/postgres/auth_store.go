package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

// AuthStore implements user and session persistence using database/sql
type AuthStore struct {
	db *sql.DB
}

// NewAuthStore creates a new PostgreSQL auth store
func NewAuthStore(db *sql.DB) *AuthStore {
	return &AuthStore{db: db}
}

// CreateUser inserts a new user
func (s *AuthStore) CreateUser(ctx context.Context, user *domain.User) error {
	attrs, err := attributesToJSON(user.Attributes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, email, first_name, last_name, attributes, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		user.UserID, user.Email, user.FirstName, user.LastName, attrs,
		user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrEmailExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email, ignoring case
func (s *AuthStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, "LOWER(email) = LOWER($1)", email)
}

// GetUserByID retrieves a user by ID
func (s *AuthStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *AuthStore) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `
		SELECT id, email, first_name, last_name, attributes, password_hash, created_at, updated_at
		FROM users WHERE ` + where

	var (
		user  domain.User
		attrs pqtype.NullRawMessage
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.UserID, &user.Email, &user.FirstName, &user.LastName, &attrs,
		&user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	user.Attributes, err = attributesFromJSON(attrs)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateSession inserts a new session
func (s *AuthStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO auth_sessions (id, user_id, token, client_addr, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.Token, toInet(session.ClientAddr),
		session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSessionByToken retrieves a session by token
func (s *AuthStore) GetSessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	query := `
		SELECT id, user_id, token, client_addr, expires_at, created_at
		FROM auth_sessions WHERE token = $1
	`
	var (
		session domain.Session
		addr    pqtype.Inet
	)
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&session.ID, &session.UserID, &session.Token, &addr, &session.ExpiresAt, &session.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	session.ClientAddr = fromInet(addr)
	return &session, nil
}

// DeleteSession removes a session
func (s *AuthStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now
func (s *AuthStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// -----------------------------------------------------------------------------
// Column mappers
// -----------------------------------------------------------------------------

func attributesToJSON(attrs map[string]string) (pqtype.NullRawMessage, error) {
	if len(attrs) == 0 {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("marshal attributes: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

func attributesFromJSON(raw pqtype.NullRawMessage) (map[string]string, error) {
	if !raw.Valid || len(raw.RawMessage) == 0 {
		return nil, nil
	}
	var attrs map[string]string
	if err := json.Unmarshal(raw.RawMessage, &attrs); err != nil {
		return nil, fmt.Errorf("unmarshal attributes: %w", err)
	}
	return attrs, nil
}

// toInet converts a client address ("ip" or "ip:port") to an inet value.
// Unparseable addresses are stored as NULL.
func toInet(addr string) pqtype.Inet {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return pqtype.Inet{}
	}
	bits := 128
	if v4 := ip.To4(); v4 != nil {
		ip = v4
		bits = 32
	}
	return pqtype.Inet{IPNet: net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, Valid: true}
}

func fromInet(inet pqtype.Inet) string {
	if !inet.Valid || inet.IPNet.IP == nil {
		return ""
	}
	return inet.IPNet.IP.String()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
