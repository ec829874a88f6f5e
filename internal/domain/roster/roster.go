// Package roster implements the student roster workflow: a read-through
// cache of the authorized records, client-side filtering, mutations that
// refetch the authoritative copy, and the prediction trigger.
package roster

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gradepredict/console/internal/domain/model"
	"github.com/gradepredict/console/internal/domain/types"
	"github.com/gradepredict/console/pkg/logger"
	"github.com/gradepredict/console/pkg/metrics"
)

// Backend is the slice of the API client the workflow needs.
type Backend interface {
	Students(ctx context.Context) ([]model.Student, error)
	AddStudent(ctx context.Context, form model.StudentForm) error
	UpdateStudent(ctx context.Context, id int, form model.StudentForm) error
	DeleteStudent(ctx context.Context, id int) error
	Predict(ctx context.Context, id int) (*model.PredictionResult, error)
}

// Workflow owns the cached roster and serializes work against it.
type Workflow struct {
	mu      sync.Mutex
	backend Backend

	students []model.Student

	// loadToken identifies the most recent Load; older responses are
	// dropped instead of overwriting newer state.
	loadToken uuid.UUID

	// predicting enforces a single in-flight prediction.
	predicting bool

	// busy guards against two concurrent mutations on the same record.
	busy map[int]bool

	validate *validator.Validate
	logger   logger.Logger
}

// Option applies a configuration option to the Workflow.
type Option func(*Workflow)

// WithLogger sets a custom logger for the workflow.
func WithLogger(log logger.Logger) Option {
	return func(w *Workflow) {
		if log != nil {
			w.logger = log
		}
	}
}

// New creates an empty Workflow; Load populates it.
func New(backend Backend, opts ...Option) *Workflow {
	w := &Workflow{
		backend:  backend,
		busy:     make(map[int]bool),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Named("roster"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Load refetches the full roster. On any failure the cache is emptied, never
// left stale: a previous user's roster must not leak into a new session.
func (w *Workflow) Load(ctx context.Context) error {
	token := uuid.New()
	w.mu.Lock()
	w.loadToken = token
	w.mu.Unlock()

	students, err := w.backend.Students(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loadToken != token {
		// A newer load superseded this response.
		metrics.RecordStaleResponse()
		return nil
	}
	if err != nil {
		w.students = nil
		w.logger.Warn(ctx, "roster load failed; cache emptied", logger.Error(err))
		return err
	}

	w.students = students
	metrics.RecordRosterReload(len(students))
	return nil
}

// Roster returns a snapshot of the cached records in backend order.
func (w *Workflow) Roster() []model.Student {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.Student, len(w.students))
	copy(out, w.students)
	return out
}

// Filter returns the cached records whose name or user id contains query,
// case-insensitively. An empty query yields the full roster in unmodified
// order. Pure and client-side; the cache is untouched.
func (w *Workflow) Filter(query string) []model.Student {
	all := w.Roster()
	needle := strings.ToLower(query)
	if needle == "" {
		return all
	}

	matched := make([]model.Student, 0, len(all))
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.Name), needle) ||
			strings.Contains(strings.ToLower(s.UserID), needle) {
			matched = append(matched, s)
		}
	}
	return matched
}

// Add creates a record and reloads the roster so the displayed state matches
// the backend's copy, including server-side normalization.
func (w *Workflow) Add(ctx context.Context, form model.StudentForm) error {
	if err := w.validateForm(form); err != nil {
		metrics.RecordRosterMutation("add", "validation")
		return err
	}
	if err := w.backend.AddStudent(ctx, form); err != nil {
		metrics.RecordRosterMutation("add", "failure")
		return err
	}
	metrics.RecordRosterMutation("add", "success")
	return w.Load(ctx)
}

// Update submits edited fields for one record. On success the roster is
// fully reloaded; on failure the caller keeps the edit context open so the
// user can retry. Retries are user-initiated only.
func (w *Workflow) Update(ctx context.Context, id int, form model.StudentForm) error {
	if err := w.validateForm(form); err != nil {
		metrics.RecordRosterMutation("update", "validation")
		return err
	}
	if err := w.acquireRecord(id); err != nil {
		return err
	}
	defer w.releaseRecord(id)

	if err := w.backend.UpdateStudent(ctx, id, form); err != nil {
		metrics.RecordRosterMutation("update", "failure")
		return err
	}
	metrics.RecordRosterMutation("update", "success")
	return w.Load(ctx)
}

// Remove deletes one record and reloads. Failure leaves the cached roster
// unchanged.
func (w *Workflow) Remove(ctx context.Context, id int) error {
	if err := w.acquireRecord(id); err != nil {
		return err
	}
	defer w.releaseRecord(id)

	if err := w.backend.DeleteStudent(ctx, id); err != nil {
		metrics.RecordRosterMutation("remove", "failure")
		return err
	}
	metrics.RecordRosterMutation("remove", "success")
	return w.Load(ctx)
}

// Predict issues the prediction request for one record. Only one prediction
// may be in flight at a time, across all rows. The caller hands the result
// to the result view; it is never stored here.
func (w *Workflow) Predict(ctx context.Context, id int) (*model.PredictionResult, error) {
	w.mu.Lock()
	if w.predicting {
		w.mu.Unlock()
		return nil, ErrPredictionInFlight
	}
	w.predicting = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.predicting = false
		w.mu.Unlock()
	}()

	res, err := w.backend.Predict(ctx, id)
	if err != nil {
		metrics.RecordPrediction("failure")
		return nil, err
	}
	metrics.RecordPrediction("success")
	return res, nil
}

// Predicting reports whether a prediction request is outstanding, so the
// front end can disable the predict actions.
func (w *Workflow) Predicting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.predicting
}

// Clear empties the cache, used when the session ends.
func (w *Workflow) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.students = nil
	w.loadToken = uuid.UUID{}
}

func (w *Workflow) acquireRecord(id int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy[id] {
		return ErrRecordBusy
	}
	w.busy[id] = true
	return nil
}

func (w *Workflow) releaseRecord(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.busy, id)
}

// validateForm applies the client-side field rules before any network call.
func (w *Workflow) validateForm(form model.StudentForm) error {
	err := w.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return types.Validation("Invalid student fields")
	}
	switch verrs[0].Field() {
	case "UserID":
		return types.Validation("User ID is required")
	case "Name":
		return types.Validation("Student name is required")
	case "Attendance":
		return types.Validation("Attendance must be between 0 and 100")
	default:
		return types.Validation("Numeric fields must not be negative")
	}
}
