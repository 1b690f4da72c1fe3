package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/repository"
)

var ErrInvalidSubscription = errors.New("invalid push subscription")

type UserService struct {
	userRepository repository.UserRepository
}

func NewUserService(userRepository repository.UserRepository) *UserService {
	return &UserService{
		userRepository: userRepository,
	}
}

func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	return s.userRepository.ByID(ctx, id)
}

func (s *UserService) UpdatePreferences(ctx context.Context, userID string, prefs model.NotificationPreferences) (*model.User, error) {
	err := s.userRepository.UpdatePreferences(ctx, userID, prefs)
	if err != nil {
		return nil, err
	}

	slog.Info("notification preferences updated", "user_id", userID)
	return s.userRepository.ByID(ctx, userID)
}

func (s *UserService) UpdatePrivacy(ctx context.Context, userID string, privacy model.PrivacySettings) (*model.User, error) {
	err := s.userRepository.UpdatePrivacy(ctx, userID, privacy)
	if err != nil {
		return nil, err
	}

	slog.Info("privacy settings updated", "user_id", userID)
	return s.userRepository.ByID(ctx, userID)
}

// SetPushSubscription registers the browser endpoint push messages go to.
// Only one subscription per user is kept.
func (s *UserService) SetPushSubscription(ctx context.Context, userID string, sub model.PushSubscription) error {
	if sub.Endpoint == "" {
		return ErrInvalidSubscription
	}
	u, err := url.Parse(sub.Endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return ErrInvalidSubscription
	}

	err = s.userRepository.SetPushSubscription(ctx, userID, &sub)
	if err != nil {
		return err
	}

	slog.Info("push subscription saved", "user_id", userID)
	return nil
}

func (s *UserService) RemovePushSubscription(ctx context.Context, userID string) error {
	err := s.userRepository.SetPushSubscription(ctx, userID, nil)
	if err != nil {
		return err
	}

	slog.Info("push subscription removed", "user_id", userID)
	return nil
}
