package account

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// User is an application account. It has no relation to warehouse patients.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"type:varchar(320);uniqueIndex;not null"`
	FirstName    string    `gorm:"type:varchar(120);not null"`
	LastName     string    `gorm:"type:varchar(120);not null"`
	PasswordHash string    `gorm:"type:varchar(100);not null"`
	Role         string    `gorm:"type:varchar(16);not null;default:USER"`
	TeamID       string    `gorm:"type:varchar(64);not null"`
	Bio          string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName places accounts in the service-owned schema.
func (User) TableName() string { return "app.users" }

// UserResponse is the public view of a user. CreatedAt is epoch milliseconds.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	TeamID    string `json:"teamId"`
	Bio       string `json:"bio"`
	CreatedAt int64  `json:"createdAt"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		TeamID:    u.TeamID,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt.UnixMilli(),
	}
}

// RegisterRequest is the body of a registration.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
