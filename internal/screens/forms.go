package screens

import (
	"context"
	"errors"
	"strings"

	"github.com/reflecta/reflecta/internal/api"
	"github.com/reflecta/reflecta/internal/models"
	"github.com/reflecta/reflecta/internal/reflections"
)

// Authenticator performs the credential exchanges used by the auth forms.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (models.User, error)
	Register(ctx context.Context, name, email, password string) (models.User, error)
}

// ReflectionCreator submits journal entries.
type ReflectionCreator interface {
	Create(ctx context.Context, mood int, note string) (models.Reflection, error)
}

// LoginForm holds the sign-in fields.
type LoginForm struct {
	Email    string
	Password string

	// Message is the last user-visible error.
	Message string
}

// Submit validates the fields and signs in.
func (f *LoginForm) Submit(ctx context.Context, auth Authenticator) (models.User, error) {
	f.Message = ""
	email := strings.TrimSpace(f.Email)
	if email == "" || f.Password == "" {
		return f.fail(api.ValidationError("Email and password are required."), "")
	}

	user, err := auth.Login(ctx, email, f.Password)
	if err != nil {
		return f.fail(err, "Unable to sign in. Please try again.")
	}
	return user, nil
}

func (f *LoginForm) fail(err error, fallback string) (models.User, error) {
	f.Message = api.Message(err, fallback)
	return models.User{}, err
}

// SignupForm holds the registration fields.
type SignupForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	AgreedToTerms   bool

	Message string
}

// Submit validates the fields and registers the account.
func (f *SignupForm) Submit(ctx context.Context, auth Authenticator) (models.User, error) {
	f.Message = ""
	name := strings.TrimSpace(f.Name)
	email := strings.TrimSpace(f.Email)

	var err error
	switch {
	case !f.AgreedToTerms:
		err = api.ValidationError("Please accept the privacy policy and terms.")
	case name == "" || email == "" || f.Password == "":
		err = api.ValidationError("Name, email and password are required.")
	case f.Password != f.ConfirmPassword:
		err = api.ValidationError("Passwords don't match.")
	}
	if err != nil {
		f.Message = api.Message(err, "")
		return models.User{}, err
	}

	user, err := auth.Register(ctx, name, email, f.Password)
	if err != nil {
		f.Message = api.Message(err, "Unable to create your account. Please try again.")
		return models.User{}, err
	}
	return user, nil
}

// NoMoodMessage is shown when a journal entry is submitted without a mood.
const NoMoodMessage = "Choose how you're feeling first."

// JournalForm is the check-in + note editor.
type JournalForm struct {
	mood int
	note string

	submitting bool
	Message    string
}

// SelectMood picks a mood from the catalog. Values outside the scale are kept
// so that submission reports them.
func (f *JournalForm) SelectMood(mood int) {
	f.mood = mood
}

// Mood returns the selected mood, zero when none.
func (f *JournalForm) Mood() int {
	return f.mood
}

// SetNote replaces the note text.
func (f *JournalForm) SetNote(note string) {
	f.note = note
}

// Note returns the current note.
func (f *JournalForm) Note() string {
	return f.note
}

// Remaining returns how many characters may still be typed. Negative when over.
func (f *JournalForm) Remaining() int {
	return models.MaxNoteLength - models.NoteLength(f.note)
}

// CanSubmit reports whether the submit action is enabled.
func (f *JournalForm) CanSubmit() bool {
	return f.mood != 0 && !f.submitting
}

// Submit validates locally and creates the reflection. On success the form resets.
func (f *JournalForm) Submit(ctx context.Context, creator ReflectionCreator) (models.Reflection, error) {
	f.Message = ""
	if f.mood == 0 {
		f.Message = NoMoodMessage
		return models.Reflection{}, api.ValidationError(NoMoodMessage)
	}
	if err := reflections.Validate(f.mood, f.note); err != nil {
		f.Message = api.Message(err, "")
		return models.Reflection{}, err
	}

	f.submitting = true
	defer func() { f.submitting = false }()

	created, err := creator.Create(ctx, f.mood, f.note)
	if err != nil {
		fallback := "Unable to save your reflection. Please try again."
		if errors.Is(err, api.ErrSessionExpired) {
			fallback = "Your session has expired. Please sign in again."
		}
		f.Message = api.Message(err, fallback)
		return models.Reflection{}, err
	}

	f.mood = 0
	f.note = ""
	return created, nil
}
