// Package history implements the admin-only read paths: the prediction
// history list with server-side filters, and the dashboard aggregates.
package history

import (
	"context"
	"net/url"
	"strings"

	"github.com/gradepredict/console/internal/domain/model"
	"github.com/gradepredict/console/pkg/logger"
)

// AllGrades is the filter value meaning "no grade restriction".
const AllGrades = "ALL"

// Backend is the slice of the API client the reader needs.
type Backend interface {
	History(ctx context.Context, query url.Values) ([]model.HistoryEntry, error)
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)
	DashboardCharts(ctx context.Context) (*model.DashboardCharts, error)
}

// Filter is the user-selected history restriction. Zero values mean
// unrestricted; dates are inclusive YYYY-MM-DD bounds.
type Filter struct {
	Grade string
	Start string
	End   string
}

// Query encodes the filter as request parameters. Unset fields are omitted
// entirely rather than sent empty; the server treats absence as "all".
func (f Filter) Query() url.Values {
	q := url.Values{}
	if grade := strings.TrimSpace(f.Grade); grade != "" && !strings.EqualFold(grade, AllGrades) {
		q.Set("grade", grade)
	}
	if start := strings.TrimSpace(f.Start); start != "" {
		q.Set("start", start)
	}
	if end := strings.TrimSpace(f.End); end != "" {
		q.Set("end", end)
	}
	return q
}

// Reader fetches history and dashboard data on demand. It holds no cache:
// both views show live server state on every visit.
type Reader struct {
	backend Backend
	logger  logger.Logger
}

// Option applies a configuration option to the Reader.
type Option func(*Reader)

// WithLogger sets a custom logger for the reader.
func WithLogger(log logger.Logger) Option {
	return func(r *Reader) {
		if log != nil {
			r.logger = log
		}
	}
}

// NewReader creates a Reader over the given backend.
func NewReader(backend Backend, opts ...Option) *Reader {
	r := &Reader{
		backend: backend,
		logger:  logger.Named("history"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Entries fetches the prediction history matching the filter, newest first
// per the server's ordering.
func (r *Reader) Entries(ctx context.Context, f Filter) ([]model.HistoryEntry, error) {
	entries, err := r.backend.History(ctx, f.Query())
	if err != nil {
		r.logger.Warn(ctx, "history fetch failed", logger.Error(err))
		return nil, err
	}
	return entries, nil
}

// Stats fetches the dashboard aggregate cards.
func (r *Reader) Stats(ctx context.Context) (*model.DashboardStats, error) {
	stats, err := r.backend.DashboardStats(ctx)
	if err != nil {
		r.logger.Warn(ctx, "dashboard stats fetch failed", logger.Error(err))
		return nil, err
	}
	return stats, nil
}

// Charts fetches the dashboard chart series.
func (r *Reader) Charts(ctx context.Context) (*model.DashboardCharts, error) {
	charts, err := r.backend.DashboardCharts(ctx)
	if err != nil {
		r.logger.Warn(ctx, "dashboard charts fetch failed", logger.Error(err))
		return nil, err
	}
	return charts, nil
}
