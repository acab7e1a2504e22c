package services

import (
	"context"
	"errors"
	"strings"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/ports"
)

type PreferencesService struct {
	store ports.PreferencesStore
}

func NewPreferencesService(store ports.PreferencesStore) *PreferencesService {
	return &PreferencesService{store: store}
}

// Get returns the saved preferences, or the defaults with IsFirstTime set
// when the user never saved any.
func (s *PreferencesService) Get(ctx context.Context, sess auth.Session) (core.Preferences, error) {
	p, err := s.store.GetPreferences(ctx, sess)
	if errors.Is(err, core.ErrNotFound) {
		return core.DefaultPreferences(sess.Email), nil
	}
	if err != nil {
		return core.Preferences{}, err
	}
	p.IsFirstTime = false
	return p, nil
}

func (s *PreferencesService) Save(ctx context.Context, sess auth.Session, p core.Preferences) (core.Preferences, error) {
	p.Email = sess.Email
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = core.DefaultCurrency
	}
	if p.EmergencyFundMonths == 0 {
		p.EmergencyFundMonths = core.DefaultEmergencyMonths
	}
	p.IsFirstTime = false
	if err := p.Validate(); err != nil {
		return core.Preferences{}, err
	}
	saved, err := s.store.SavePreferences(ctx, sess, p)
	if err != nil {
		return core.Preferences{}, err
	}
	saved.IsFirstTime = false
	return saved, nil
}
