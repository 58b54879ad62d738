package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// memoryRepo is an in-memory Repository for tests
type memoryRepo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	sessions map[string]*domain.Session
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:    make(map[string]*domain.User),
		sessions: make(map[string]*domain.Session),
	}
}

func (m *memoryRepo) CreateUser(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.ErrEmailExists
		}
	}
	m.users[user.UserID] = user
	return nil
}

func (m *memoryRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memoryRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *memoryRepo) CreateSession(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memoryRepo) GetSessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Token == token {
			return s, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (m *memoryRepo) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memoryRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.IsExpired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func newTestService(repo Repository) *Service {
	svc := NewService(repo, time.Hour)
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func registerAda(t *testing.T, svc *Service) *domain.User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "  Ada@Example.com ",
		FirstName: "Ada",
		Password:  "analytical-engine",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return user
}

func TestService_Register(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	user := registerAda(t, svc)

	if user.Email != "ada@example.com" {
		t.Errorf("Email = %q; want normalized", user.Email)
	}
	if user.UserID == "" {
		t.Error("UserID should be set")
	}
	if user.PasswordHash == "" || user.PasswordHash == "analytical-engine" {
		t.Error("password should be hashed")
	}
}

func TestService_Register_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"bad email", RegisterRequest{Email: "not-an-email", Password: "longenough"}},
		{"empty email", RegisterRequest{Email: "", Password: "longenough"}},
		{"short password", RegisterRequest{Email: "a@b.c", Password: "short"}},
	}

	svc := newTestService(newMemoryRepo())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tt.req); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("Register() error = %v; want ErrInvalidInput", err)
			}
		})
	}
}

func TestService_Register_Duplicate(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	registerAda(t, svc)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "ADA@example.com", Password: "another-password"})
	if !errors.Is(err, domain.ErrEmailExists) {
		t.Errorf("Register() error = %v; want ErrEmailExists", err)
	}
}

func TestService_LoginAndValidate(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	registerAda(t, svc)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:      "ada@example.com",
		Password:   "analytical-engine",
		ClientAddr: "127.0.0.1:5000",
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.Token == "" || resp.Session.ClientAddr != "127.0.0.1:5000" {
		t.Errorf("LoginResponse = %+v", resp)
	}

	user, session, err := svc.ValidateSession(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if user.FirstName != "Ada" || session.ID != resp.Session.ID {
		t.Errorf("ValidateSession() = %+v, %+v", user, session)
	}
}

func TestService_Login_InvalidCredentials(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	registerAda(t, svc)

	tests := []LoginRequest{
		{Email: "ada@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "analytical-engine"},
	}
	for _, req := range tests {
		if _, err := svc.Login(context.Background(), req); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Errorf("Login(%s) error = %v; want ErrInvalidCredentials", req.Email, err)
		}
	}
}

func TestService_ValidateSession_Expired(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	registerAda(t, svc)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "analytical-engine"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, _, err := svc.ValidateSession(context.Background(), resp.Token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("ValidateSession() error = %v; want ErrSessionExpired", err)
	}
	if len(repo.sessions) != 0 {
		t.Errorf("expired session should be deleted, %d left", len(repo.sessions))
	}
}

func TestService_Logout(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	registerAda(t, svc)
	resp, err := svc.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "analytical-engine"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := svc.Logout(context.Background(), resp.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, _, err := svc.ValidateSession(context.Background(), resp.Token); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("ValidateSession() after logout error = %v; want ErrSessionNotFound", err)
	}
	if err := svc.Logout(context.Background(), resp.Token); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("second Logout() error = %v; want ErrSessionNotFound", err)
	}
}

func TestService_CleanupExpiredSessions(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	now := time.Now()
	repo.sessions["old"] = &domain.Session{ID: "old", Token: "a", ExpiresAt: now.Add(-time.Minute)}
	repo.sessions["new"] = &domain.Session{ID: "new", Token: "b", ExpiresAt: now.Add(time.Hour)}

	n, err := svc.CleanupExpiredSessions(context.Background())
	if err != nil {
		t.Fatalf("CleanupExpiredSessions() error = %v", err)
	}
	if n != 1 {
		t.Errorf("removed = %d; want 1", n)
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := generateToken(32)
	if err != nil {
		t.Fatalf("generateToken() error = %v", err)
	}
	b, _ := generateToken(32)
	if a == b {
		t.Error("tokens should be unique")
	}
	if len(a) != 44 {
		t.Errorf("len(token) = %d; want 44", len(a))
	}
}

func TestService_UserByEmail(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ada := registerAda(t, svc)

	got, err := svc.UserByEmail(context.Background(), " ADA@example.com")
	if err != nil {
		t.Fatalf("UserByEmail() error = %v", err)
	}
	if got.UserID != ada.UserID {
		t.Errorf("UserByEmail() = %q; want %q", got.UserID, ada.UserID)
	}

	if _, err := svc.UserByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("UserByEmail(unknown) error = %v; want ErrUserNotFound", err)
	}
}
