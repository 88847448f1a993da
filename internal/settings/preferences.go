package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/reflecta/reflecta/internal/credentials"
)

// PreferencesKey is the keyring entry holding local preferences.
const PreferencesKey = "preferences"

// ErrUnknownSetting is returned by Apply for keys it does not recognise.
var ErrUnknownSetting = errors.New("unknown setting")

// Preferences are device-local settings. They never leave the device.
type Preferences struct {
	ReminderTime  string `json:"reminderTime"`
	DailyReminder bool   `json:"dailyReminder"`
	BiometricLock bool   `json:"biometricLock"`
}

// Defaults returns the preferences used before anything is saved.
func Defaults() Preferences {
	return Preferences{ReminderTime: "21:30", DailyReminder: true, BiometricLock: true}
}

// Store persists Preferences in a keyring.
type Store struct {
	kv credentials.Keyring
}

// NewStore wraps kv.
func NewStore(kv credentials.Keyring) *Store {
	if kv == nil {
		panic("settings: keyring must not be nil")
	}
	return &Store{kv: kv}
}

// Load returns the saved preferences, or Defaults when none are readable.
func (s *Store) Load(ctx context.Context) Preferences {
	raw, err := s.kv.Get(ctx, PreferencesKey)
	if err != nil {
		return Defaults()
	}
	prefs := Defaults()
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return Defaults()
	}
	return prefs
}

// Save persists prefs.
func (s *Store) Save(ctx context.Context, prefs Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := s.kv.Set(ctx, PreferencesKey, string(data)); err != nil {
		return fmt.Errorf("store preferences: %w", err)
	}
	return nil
}

// Reset removes saved preferences.
func (s *Store) Reset(ctx context.Context) error {
	return s.kv.Delete(ctx, PreferencesKey)
}

// Apply sets one preference from its textual form.
func (p *Preferences) Apply(key, value string) error {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "reminder", "reminder-time", "remindertime":
		t, err := ParseReminderTime(value)
		if err != nil {
			return err
		}
		p.ReminderTime = t
	case "daily-reminder", "dailyreminder":
		b, err := parseToggle(value)
		if err != nil {
			return err
		}
		p.DailyReminder = b
	case "biometric", "biometric-lock", "biometriclock":
		b, err := parseToggle(value)
		if err != nil {
			return err
		}
		p.BiometricLock = b
	default:
		return fmt.Errorf("%w %q", ErrUnknownSetting, key)
	}
	return nil
}

// ParseReminderTime accepts "21:30" or "9:30 PM" and normalises to 24h "15:04".
func ParseReminderTime(value string) (string, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	for _, layout := range []string{"15:04", "3:04 PM", "3:04PM"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("invalid reminder time %q", value)
}

// DisplayReminderTime renders a stored "15:04" value as "9:30 PM".
func DisplayReminderTime(value string) string {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return value
	}
	return t.Format("3:04 PM")
}

func parseToggle(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "yes", "enabled":
		return true, nil
	case "off", "no", "disabled":
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid toggle %q", value)
	}
	return b, nil
}
