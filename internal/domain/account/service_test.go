package account

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock User Store --

type mockUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return nil
}

func (m *mockUserStore) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockUserStore) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Email:     "Clinician@Example.com",
		Password:  "correct horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
}

func TestService_Register(t *testing.T) {
	svc := NewService(newMockUserStore())

	u, err := svc.Register(context.Background(), validRegistration(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if u.Email != "clinician@example.com" {
		t.Errorf("expected normalised email, got %s", u.Email)
	}
	if u.Role != RoleUser {
		t.Errorf("expected default role %s, got %s", RoleUser, u.Role)
	}
	if u.PasswordHash == "" || u.PasswordHash == "correct horse" {
		t.Error("expected password to be hashed")
	}
	if !strings.HasPrefix(u.PasswordHash, "$2a$10$") {
		t.Errorf("expected bcrypt cost 10 hash, got %s", u.PasswordHash[:7])
	}
}

func TestService_Register_MissingFields(t *testing.T) {
	svc := NewService(newMockUserStore())

	for _, field := range []string{"email", "password", "firstName", "lastName"} {
		t.Run(field, func(t *testing.T) {
			req := validRegistration()
			switch field {
			case "email":
				req.Email = " "
			case "password":
				req.Password = ""
			case "firstName":
				req.FirstName = ""
			case "lastName":
				req.LastName = ""
			}
			if _, err := svc.Register(context.Background(), req, ""); !errors.Is(err, ErrMissingFields) {
				t.Errorf("expected ErrMissingFields, got %v", err)
			}
		})
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	svc := NewService(newMockUserStore())
	if _, err := svc.Register(context.Background(), validRegistration(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dup := validRegistration()
	dup.Email = "clinician@example.com"
	if _, err := svc.Register(context.Background(), dup, ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestService_Authenticate(t *testing.T) {
	svc := NewService(newMockUserStore())
	registered, err := svc.Register(context.Background(), validRegistration(), RoleAdmin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, err := svc.Authenticate(context.Background(), "clinician@example.com", "correct horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != registered.ID {
		t.Errorf("expected user %s, got %s", registered.ID, u.ID)
	}

	if _, err := svc.Authenticate(context.Background(), "clinician@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "nobody@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUser_ToResponse(t *testing.T) {
	created := time.UnixMilli(1700000000000)
	u := &User{ID: uuid.New(), Email: "a@b.c", FirstName: "A", LastName: "B", PasswordHash: "secret", Role: RoleAdmin, CreatedAt: created}

	resp := u.ToResponse()
	if resp.CreatedAt != 1700000000000 {
		t.Errorf("expected epoch millis, got %d", resp.CreatedAt)
	}
	if resp.ID != u.ID.String() || resp.Role != RoleAdmin {
		t.Errorf("unexpected response %+v", resp)
	}
}
