package subscription

import (
	"context"
	"fmt"

	"multipost-bot/internal/database"
	"multipost-bot/internal/database/models"
)

// FreeMessageLimit is the number of broadcasts a free-plan user may send.
const FreeMessageLimit = 3

// Service enforces the plan allowance and records usage. It is the broadcast
// usage gate and accounting sink.
type Service struct {
	users database.UserRepository
}

// NewService creates the subscription service.
func NewService(users database.UserRepository) *Service {
	return &Service{users: users}
}

// CanSend reports whether the user may start another broadcast, along with
// the free-tier usage figures. Premium users are never limited. An unknown
// user is treated as a fresh free-plan account.
func (s *Service) CanSend(ctx context.Context, ownerID int64) (allowed bool, used, limit int, err error) {
	user, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		return false, 0, FreeMessageLimit, fmt.Errorf("failed to load user %d: %w", ownerID, err)
	}
	if user == nil {
		return true, 0, FreeMessageLimit, nil
	}
	if user.Plan == models.PlanPremium {
		return true, user.FreeMessagesUsed, FreeMessageLimit, nil
	}
	return user.FreeMessagesUsed < FreeMessageLimit, user.FreeMessagesUsed, FreeMessageLimit, nil
}

// IncrementSentCount charges one broadcast to the user. Free-plan users also
// consume one unit of their free allowance; premium usage is only counted in
// the lifetime total.
func (s *Service) IncrementSentCount(ctx context.Context, ownerID int64) error {
	user, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to load user %d: %w", ownerID, err)
	}
	includeFree := user == nil || user.Plan != models.PlanPremium
	if err := s.users.IncrementMessageCount(ctx, ownerID, includeFree); err != nil {
		return fmt.Errorf("failed to record broadcast for user %d: %w", ownerID, err)
	}
	return nil
}
