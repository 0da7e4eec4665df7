package repositories

import (
	"context"

	"stakeoption/internal/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	// Create inserts the user, or returns the existing row for the same phone
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID retrieves a user by their ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByPhone retrieves a user by their phone number
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
}
