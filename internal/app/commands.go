package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/reflecta/reflecta/internal/api"
	"github.com/reflecta/reflecta/internal/models"
	"github.com/reflecta/reflecta/internal/screens"
	"github.com/reflecta/reflecta/internal/settings"
)

// ReloginHint is printed whenever a command observes an expired session.
const ReloginHint = "Your session has expired. Run `reflecta login <email> <password>` to sign in again."

// commandError carries the line already shown to the user.
type commandError struct {
	Message string
	Err     error
}

func (e *commandError) Error() string { return e.Message }

func (e *commandError) Unwrap() error { return e.Err }

type cli struct {
	deps *clientDeps
	out  io.Writer
}

func newCLI(deps *clientDeps, out io.Writer) *cli {
	return &cli{deps: deps, out: out}
}

// SessionExpired implements screens.SessionObserver. It stands in for
// navigating back to the login screen.
func (c *cli) SessionExpired(context.Context) {
	fmt.Fprintln(c.out, ReloginHint)
}

func (c *cli) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return c.login(ctx, rest)
	case "register":
		return c.register(ctx, rest)
	case "logout":
		return c.logout(ctx)
	case "whoami":
		return c.whoami(ctx)
	case "profile":
		return c.profile(ctx)
	case "reflect":
		return c.reflect(ctx, rest)
	case "weekly":
		return c.weekly(ctx)
	case "insights":
		return c.insights(ctx)
	case "export":
		return c.export(ctx, rest)
	case "settings":
		return c.settings(ctx, rest)
	case "reset":
		return c.reset(ctx)
	case "moods":
		return c.moods()
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func (c *cli) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: reflecta login <email> <password>")
	}
	form := screens.LoginForm{Email: args[0], Password: args[1]}
	user, err := form.Submit(ctx, c.deps.Auth)
	if err != nil {
		return &commandError{Message: form.Message, Err: err}
	}
	fmt.Fprintf(c.out, "Signed in as %s <%s>\n", user.Name, user.Email)
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	var (
		positional []string
		agreed     bool
	)
	for _, arg := range args {
		if arg == "--accept-terms" {
			agreed = true
			continue
		}
		positional = append(positional, arg)
	}
	if len(positional) != 3 {
		return errors.New("usage: reflecta register <name> <email> <password> --accept-terms")
	}

	form := screens.SignupForm{
		Name:            positional[0],
		Email:           positional[1],
		Password:        positional[2],
		ConfirmPassword: positional[2],
		AgreedToTerms:   agreed,
	}
	user, err := form.Submit(ctx, c.deps.Auth)
	if err != nil {
		return &commandError{Message: form.Message, Err: err}
	}
	fmt.Fprintf(c.out, "Welcome, %s! Your account is ready.\n", user.Name)
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	if err := c.deps.Auth.Logout(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	fmt.Fprintln(c.out, "Signed out.")
	return nil
}

func (c *cli) whoami(ctx context.Context) error {
	if !c.deps.Auth.IsAuthenticated(ctx) {
		fmt.Fprintln(c.out, "Not signed in.")
		return nil
	}
	user, ok := c.deps.Auth.StoredUser(ctx)
	if !ok {
		fmt.Fprintln(c.out, "Signed in (profile not cached).")
		return nil
	}
	fmt.Fprintf(c.out, "%s <%s> (id %s)\n", user.Name, user.Email, user.ID)
	return nil
}

func (c *cli) profile(ctx context.Context) error {
	user, err := c.deps.Auth.Profile(ctx)
	if err != nil {
		return c.fail(ctx, err, "Unable to load your profile.")
	}
	fmt.Fprintf(c.out, "%s <%s> (id %s)\n", user.Name, user.Email, user.ID)
	return nil
}

func (c *cli) reflect(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: reflecta reflect <mood 1-5> [note...]")
	}
	mood, err := strconv.Atoi(args[0])
	if err != nil {
		return &commandError{Message: "Mood must be a number between 1 and 5.", Err: api.ValidationError("Mood must be between 1 and 5.")}
	}

	var form screens.JournalForm
	form.SelectMood(mood)
	form.SetNote(strings.Join(args[1:], " "))

	created, err := form.Submit(ctx, c.deps.Reflections)
	if err != nil {
		if errors.Is(err, api.ErrSessionExpired) {
			c.SessionExpired(ctx)
		}
		return &commandError{Message: form.Message, Err: err}
	}

	label := strconv.Itoa(created.Mood)
	if m, ok := models.LookupMood(created.Mood); ok {
		label = m.Emoji + " " + m.Label
	}
	fmt.Fprintf(c.out, "Saved reflection: %s\n", label)
	if created.Note != "" {
		fmt.Fprintf(c.out, "  %q\n", created.Note)
	}
	return nil
}

func (c *cli) weekly(ctx context.Context) error {
	loader := screens.NewWeeklyScreen(c.deps.Reflections, screens.Options[models.WeeklySummary]{Session: c})
	state, err := mountAndWait(ctx, loader)
	if err != nil {
		return err
	}
	return renderWeekly(c.out, state)
}

func (c *cli) insights(ctx context.Context) error {
	loader := screens.NewInsightsScreen(c.deps.Reflections, screens.Options[models.Insights]{Session: c})
	state, err := mountAndWait(ctx, loader)
	if err != nil {
		return err
	}
	return renderInsights(c.out, state)
}

func (c *cli) export(ctx context.Context, args []string) error {
	kind := "weekly"
	if len(args) > 0 {
		kind = args[0]
	}

	var (
		data any
		err  error
	)
	switch kind {
	case "weekly":
		data, err = c.deps.Reflections.WeeklySummary(ctx)
	case "insights":
		data, err = c.deps.Reflections.Insights(ctx)
	default:
		return fmt.Errorf("unknown export %q (want weekly or insights)", kind)
	}
	if err != nil {
		return c.fail(ctx, err, "Unable to export right now.")
	}

	exporter, err := c.deps.Exports(ctx)
	if err != nil {
		return fmt.Errorf("configure export storage: %w", err)
	}
	user, _ := c.deps.Auth.StoredUser(ctx)
	location, err := exporter.Export(ctx, user.ID, kind, data)
	if err != nil {
		return fmt.Errorf("export %s: %w", kind, err)
	}
	fmt.Fprintf(c.out, "Exported %s summary to %s\n", kind, location)
	return nil
}

func (c *cli) settings(ctx context.Context, args []string) error {
	prefs := c.deps.Settings.Load(ctx)
	if len(args) == 0 || args[0] == "show" {
		renderSettings(c.out, prefs)
		return nil
	}
	if args[0] != "set" || len(args) != 3 {
		return errors.New("usage: reflecta settings [show | set <reminder|daily-reminder|biometric> <value>]")
	}
	if err := prefs.Apply(args[1], args[2]); err != nil {
		return err
	}
	if err := c.deps.Settings.Save(ctx, prefs); err != nil {
		return err
	}
	renderSettings(c.out, prefs)
	return nil
}

func (c *cli) reset(ctx context.Context) error {
	err := errors.Join(c.deps.Auth.Logout(ctx), c.deps.Settings.Reset(ctx))
	if err != nil {
		return fmt.Errorf("delete local data: %w", err)
	}
	fmt.Fprintln(c.out, "All local data deleted.")
	return nil
}

func (c *cli) moods() error {
	for _, m := range models.Moods() {
		fmt.Fprintf(c.out, "%d  %s %-9s %s\n", m.ID, m.Emoji, m.Label, m.Description)
	}
	return nil
}

// fail renders err the way a screen would and notifies on session expiry.
func (c *cli) fail(ctx context.Context, err error, fallback string) error {
	if errors.Is(err, api.ErrSessionExpired) {
		c.SessionExpired(ctx)
	}
	return &commandError{Message: api.Message(err, fallback), Err: err}
}

func mountAndWait[T any](ctx context.Context, loader *screens.Loader[T]) (screens.State[T], error) {
	loader.Mount(ctx)
	defer loader.Unmount()
	return loader.Wait(ctx)
}

func renderWeekly(out io.Writer, state screens.State[models.WeeklySummary]) error {
	switch state.Phase {
	case screens.PhaseError:
		return stateError(out, state.Message, state.CanRetry, "weekly", state.Err)
	case screens.PhaseEmpty:
		fmt.Fprintln(out, screens.WeeklyEmptyTitle)
		fmt.Fprintln(out, screens.WeeklyEmptyBody)
		return nil
	}

	s := state.Data
	if s.DateRange != "" {
		fmt.Fprintf(out, "Week of %s\n\n", s.DateRange)
	}
	for _, p := range s.WeeklyData {
		fmt.Fprintf(out, "%-4s %-10s %.1f\n", p.Day, strings.Repeat("█", int(p.Mood*2+0.5)), p.Mood)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Average mood  %s\n", orDash(s.AvgMood))
	fmt.Fprintf(out, "Top emotion   %s\n", orDash(s.TopEmotion))
	fmt.Fprintf(out, "Reflections   %s\n", orDash(s.Reflections))
	fmt.Fprintf(out, "Streak        %s\n", orDash(s.Streak))
	fmt.Fprintf(out, "\n%s\n", screens.InsightText(s))
	return nil
}

func renderInsights(out io.Writer, state screens.State[models.Insights]) error {
	switch state.Phase {
	case screens.PhaseError:
		return stateError(out, state.Message, state.CanRetry, "insights", state.Err)
	case screens.PhaseEmpty:
		fmt.Fprintln(out, "MOOD DISTRIBUTION")
		fmt.Fprintln(out, screens.InsightsEmptyBody)
		return nil
	}

	ins := state.Data
	fmt.Fprintln(out, "MOOD DISTRIBUTION")
	for _, p := range ins.MoodDistribution {
		fmt.Fprintf(out, "%-4s %-10s %3.0f%%\n", p.Day, strings.Repeat("█", int(p.Value/10+0.5)), p.Value)
	}
	if ins.MoodUplift.Value != "" {
		fmt.Fprintf(out, "\nMOOD UPLIFT %s\n%s\n%s\n", ins.MoodUplift.Value, ins.MoodUplift.Title, ins.MoodUplift.Description)
	}
	if ins.AIInsight != "" {
		fmt.Fprintf(out, "\n%s\n", ins.AIInsight)
	}
	return nil
}

func stateError(out io.Writer, message string, canRetry bool, command string, err error) error {
	if canRetry {
		fmt.Fprintf(out, "Run `reflecta %s` again to retry.\n", command)
	}
	return &commandError{Message: message, Err: err}
}

func renderSettings(out io.Writer, prefs settings.Preferences) {
	fmt.Fprintf(out, "reminder        %s\n", settings.DisplayReminderTime(prefs.ReminderTime))
	fmt.Fprintf(out, "daily-reminder  %s\n", onOff(prefs.DailyReminder))
	fmt.Fprintf(out, "biometric       %s\n", onOff(prefs.BiometricLock))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
