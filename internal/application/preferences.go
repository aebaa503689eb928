package application

import (
	"context"
	"fmt"
)

// NotificationPreferences exposes user notification settings to the
// dispatcher.
type NotificationPreferences struct {
	users UserRepository
}

// NewNotificationPreferences wraps a user repository for preference lookup.
func NewNotificationPreferences(users UserRepository) *NotificationPreferences {
	return &NotificationPreferences{users: users}
}

// ChangeNotificationsEnabled reports whether the user wants to hear about
// assignment changes.
func (p *NotificationPreferences) ChangeNotificationsEnabled(ctx context.Context, userID string) (bool, error) {
	if p == nil || p.users == nil {
		return false, fmt.Errorf("preferences are not configured")
	}
	user, err := p.users.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.ChangeNotificationsEnabled, nil
}

// RemindersEnabled reports whether the user wants start-of-shift reminders.
func (p *NotificationPreferences) RemindersEnabled(ctx context.Context, userID string) (bool, error) {
	if p == nil || p.users == nil {
		return false, fmt.Errorf("preferences are not configured")
	}
	user, err := p.users.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.RemindersEnabled, nil
}
