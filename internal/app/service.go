// Package service wires the domain workflows into one application facade
// consumed by the console front end.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/gradepredict/console/internal/domain/captcha"
	"github.com/gradepredict/console/internal/domain/history"
	"github.com/gradepredict/console/internal/domain/model"
	"github.com/gradepredict/console/internal/domain/nav"
	"github.com/gradepredict/console/internal/domain/result"
	"github.com/gradepredict/console/internal/domain/roster"
	"github.com/gradepredict/console/internal/domain/session"
	"github.com/gradepredict/console/pkg/logger"
)

// Backend is the full API surface the application depends on.
type Backend interface {
	session.Backend
	roster.Backend
	history.Backend
	captcha.Fetcher
}

// Notice is a transient, non-blocking message surfaced to the user.
type Notice struct {
	Level string // "info" or "warn"
	Text  string
}

// ResultView is the payload the result view renders: the raw prediction
// plus its derived display classification.
type ResultView struct {
	Result         *model.PredictionResult
	Classification result.Classification
	Percent        int
}

// Service orchestrates session, navigation, roster, and history workflows
// behind a single facade.
type Service struct {
	mu sync.Mutex

	session *session.Controller
	captcha *captcha.Flow
	router  *nav.Router
	roster  *roster.Workflow
	history *history.Reader

	notices []Notice

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs the application facade over a backend client.
func New(backend Backend, opts ...Option) *Service {
	flow := captcha.New(backend)
	s := &Service{
		session: session.New(backend, flow),
		captcha: flow,
		router:  nav.New(),
		roster:  roster.New(backend),
		history: history.NewReader(backend),
		logger:  logger.Named("app"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the one-time bootstrap: clear any lingering server session,
// probe validity, position the router, and prime the captcha for the login
// form. Returns the destination to render first.
func (s *Service) Start(ctx context.Context) nav.Destination {
	s.session.Bootstrap(ctx)
	dest := s.Open(ctx, s.router.Current())

	s.logger.Info(ctx, "application started",
		logger.String("state", string(s.session.State())),
		logger.String("view", string(dest)),
	)
	return dest
}

// Session returns the current session snapshot.
func (s *Service) Session() model.Session {
	return s.session.Current()
}

// View returns the active destination.
func (s *Service) View() nav.Destination {
	return s.router.Current()
}

// Open navigates to a destination, applying the access guard. Entering a
// student view triggers a fresh load so stale records are never shown;
// entering the login view fetches a new captcha challenge.
func (s *Service) Open(ctx context.Context, dest nav.Destination) nav.Destination {
	resolved := s.router.Navigate(dest, s.session.Current())
	switch resolved {
	case nav.DestRoster, nav.DestPredict:
		if err := s.roster.Load(ctx); err != nil {
			s.Notify("warn", "Error fetching students")
		}
	case nav.DestLogin:
		if err := s.captcha.Refresh(ctx); err != nil {
			s.logger.Warn(ctx, "captcha fetch failed", logger.Error(err))
		}
	}
	return resolved
}

// CaptchaQuestion returns the current challenge text for the login form.
func (s *Service) CaptchaQuestion() string {
	return s.captcha.Question()
}

// RefreshCaptcha fetches a new challenge on user request.
func (s *Service) RefreshCaptcha(ctx context.Context) error {
	return s.captcha.Refresh(ctx)
}

// Login submits credentials and, on success, greets the user and issues the
// one-time role-based redirect.
func (s *Service) Login(ctx context.Context, username, password, captchaAnswer string) (nav.Destination, error) {
	user, err := s.session.Login(ctx, username, password, captchaAnswer)
	if err != nil {
		return s.router.Current(), err
	}

	s.Notify("info", fmt.Sprintf("Welcome, %s!", user.Username))
	return s.Open(ctx, nav.AfterLogin(user)), nil
}

// Register creates an account without authenticating; on success the caller
// switches the login form back to sign-in mode.
func (s *Service) Register(ctx context.Context, username, password, confirmPassword string) error {
	if err := s.session.Register(ctx, username, password, confirmPassword); err != nil {
		return err
	}
	s.Notify("info", "Registration successful! Please login.")
	return nil
}

// Logout ends the session, drops all cached per-user data, and returns to
// the login view with a fresh captcha.
func (s *Service) Logout(ctx context.Context) nav.Destination {
	s.session.Logout(ctx)
	s.roster.Clear()

	dest := s.router.Navigate(s.router.Current(), s.session.Current())
	if err := s.captcha.Refresh(ctx); err != nil {
		s.logger.Warn(ctx, "captcha fetch after logout failed", logger.Error(err))
	}
	return dest
}

// Roster returns the cached records, or those matching query when non-empty.
func (s *Service) Roster(query string) []model.Student {
	return s.roster.Filter(query)
}

// ReloadRoster refetches the roster from the backend.
func (s *Service) ReloadRoster(ctx context.Context) error {
	return s.roster.Load(ctx)
}

// AddStudent creates a roster record and reloads on success.
func (s *Service) AddStudent(ctx context.Context, form model.StudentForm) error {
	if err := s.roster.Add(ctx, form); err != nil {
		return err
	}
	s.Notify("info", "Student added successfully!")
	return nil
}

// UpdateStudent submits edits for one record and reloads on success. On
// failure the edit context stays open for a user-initiated retry.
func (s *Service) UpdateStudent(ctx context.Context, id int, form model.StudentForm) error {
	if err := s.roster.Update(ctx, id, form); err != nil {
		return err
	}
	s.Notify("info", "Student updated successfully!")
	return nil
}

// RemoveStudent deletes a record and reloads on success.
func (s *Service) RemoveStudent(ctx context.Context, id int) error {
	if err := s.roster.Remove(ctx, id); err != nil {
		return err
	}
	s.Notify("warn", "Student deleted")
	return nil
}

// Predict runs the prediction for one record and, on success, hands the
// transient result to the result view. The result never enters the roster
// cache; navigating away discards it.
func (s *Service) Predict(ctx context.Context, id int) (nav.Destination, error) {
	res, err := s.roster.Predict(ctx, id)
	if err != nil {
		return s.router.Current(), err
	}
	return s.router.HandOff(res, s.session.Current()), nil
}

// Predicting reports whether a prediction request is outstanding.
func (s *Service) Predicting() bool {
	return s.roster.Predicting()
}

// Result returns the handed-off prediction with its display classification.
// ok is false when the result view is visited without a fresh prediction.
func (s *Service) Result() (ResultView, bool) {
	res, ok := s.router.Result()
	if !ok {
		return ResultView{}, false
	}
	return ResultView{
		Result:         res,
		Classification: result.Classify(res.Confidence),
		Percent:        result.Percent(res.Confidence),
	}, true
}

// History fetches past predictions matching the filter.
func (s *Service) History(ctx context.Context, f history.Filter) ([]model.HistoryEntry, error) {
	return s.history.Entries(ctx, f)
}

// DashboardStats fetches the aggregate cards.
func (s *Service) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	return s.history.Stats(ctx)
}

// DashboardCharts fetches the chart series.
func (s *Service) DashboardCharts(ctx context.Context) (*model.DashboardCharts, error) {
	return s.history.Charts(ctx)
}

// Notify queues a transient message for the front end.
func (s *Service) Notify(level, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{Level: level, Text: text})
}

// DrainNotices returns and clears the queued messages. Each notice is
// delivered exactly once.
func (s *Service) DrainNotices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}
