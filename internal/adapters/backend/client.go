// Package backend implements the GradePredict API client.
//
// All calls carry session credentials via a cookie jar, mirroring the
// browser's cookie-based transport. Responses are JSON; non-2xx statuses are
// mapped onto the client error taxonomy with the server-supplied message
// preserved verbatim when present.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/gradepredict/console/internal/domain/model"
	"github.com/gradepredict/console/internal/domain/types"
	"github.com/gradepredict/console/pkg/logger"
	"github.com/gradepredict/console/pkg/metrics"
)

const defaultTimeout = 10 * time.Second

// Client is the GradePredict backend API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout bounds every request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. The caller is
// responsible for attaching a cookie jar if session transport is needed.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a backend client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
		},
		logger: logger.Named("backend"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// apiError is the error payload shape shared by all endpoints.
type apiError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Message string `json:"message"`
}

// text returns the most specific server-supplied message.
func (e apiError) text() string {
	if e.Details != "" {
		return e.Details
	}
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// Logout invalidates the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	metrics.RecordLogout()
	return c.doJSON(ctx, http.MethodPost, "/logout", nil, nil)
}

// checkAuthResponse is the /check-auth success payload.
type checkAuthResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user"`
}

// CheckAuth probes session validity and returns the session's user.
func (c *Client) CheckAuth(ctx context.Context) (*model.User, error) {
	var resp checkAuthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/check-auth", nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, types.Auth("no active session")
	}
	return resp.User, nil
}

// Captcha fetches a fresh human-verification question. The expected answer
// never reaches the client; verification is entirely server-side.
func (c *Client) Captcha(ctx context.Context) (string, error) {
	var resp struct {
		Question string `json:"question"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/captcha", nil, &resp); err != nil {
		return "", err
	}
	return resp.Question, nil
}

// Login submits credentials plus the captcha answer. Any rejection is an
// authentication error carrying the server's message.
func (c *Client) Login(ctx context.Context, username, password, captchaAnswer string) (*model.User, error) {
	body := map[string]string{
		"username":       username,
		"password":       password,
		"captcha_answer": captchaAnswer,
	}
	var resp struct {
		Message string      `json:"message"`
		User    *model.User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		if errors.Is(err, types.ErrTransport) {
			return nil, err
		}
		return nil, types.Auth(types.UserMessage(err))
	}
	if resp.User == nil {
		return nil, types.Auth("Login failed")
	}
	return resp.User, nil
}

// Register creates an account. Registration never authenticates.
func (c *Client) Register(ctx context.Context, username, password, confirmPassword string) error {
	body := map[string]string{
		"username":         username,
		"password":         password,
		"confirm_password": confirmPassword,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/register", body, nil); err != nil {
		if errors.Is(err, types.ErrTransport) {
			return err
		}
		return types.Auth(types.UserMessage(err))
	}
	return nil
}

// Students fetches the full authorized roster.
func (c *Client) Students(ctx context.Context) ([]model.Student, error) {
	var students []model.Student
	if err := c.doJSON(ctx, http.MethodGet, "/students", nil, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// AddStudent creates one record.
func (c *Client) AddStudent(ctx context.Context, form model.StudentForm) error {
	return c.doJSON(ctx, http.MethodPost, "/students", form, nil)
}

// UpdateStudent replaces one record's editable fields.
func (c *Client) UpdateStudent(ctx context.Context, id int, form model.StudentForm) error {
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/students/%d", id), form, nil)
}

// DeleteStudent removes one record.
func (c *Client) DeleteStudent(ctx context.Context, id int) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/students/%d", id), nil, nil)
}

// Predict requests a grade prediction for one record.
func (c *Client) Predict(ctx context.Context, id int) (*model.PredictionResult, error) {
	var res model.PredictionResult
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/predict/%d", id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// History fetches past predictions matching the given query values.
func (c *Client) History(ctx context.Context, query url.Values) ([]model.HistoryEntry, error) {
	path := "/history"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var entries []model.HistoryEntry
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// DashboardStats fetches the aggregate stat cards.
func (c *Client) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	var stats model.DashboardStats
	if err := c.doJSON(ctx, http.MethodGet, "/dashboard-stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// DashboardCharts fetches the chart payloads.
func (c *Client) DashboardCharts(ctx context.Context) (*model.DashboardCharts, error) {
	var charts model.DashboardCharts
	if err := c.doJSON(ctx, http.MethodGet, "/dashboard-charts", nil, &charts); err != nil {
		return nil, err
	}
	return &charts, nil
}

// doJSON performs a single request and decodes the response into result.
func (c *Client) doJSON(ctx context.Context, method, path string, body, result interface{}) error {
	fullURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	endpoint := endpointLabel(method, path)
	metrics.RequestStarted()
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RequestFinished()
	if err != nil {
		metrics.RecordTransportError()
		c.logger.Warn(ctx, "backend unreachable", logger.String("endpoint", endpoint), logger.Error(err))
		return types.Transport("Server not reachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordTransportError()
		return types.Transport("Server not reachable")
	}

	outcome := "success"
	if resp.StatusCode >= 400 {
		outcome = "rejected"
	}
	metrics.RecordBackendRequest(endpoint, outcome, time.Since(start))

	c.logger.Debug(ctx, "backend response",
		logger.String("endpoint", endpoint),
		logger.Int("status", resp.StatusCode),
	)

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return types.Transport("unexpected response from server")
		}
	}
	return nil
}

// statusError maps a non-2xx response onto the error taxonomy.
func statusError(status int, body []byte) error {
	var payload apiError
	_ = json.Unmarshal(body, &payload)
	msg := payload.text()

	switch status {
	case http.StatusUnauthorized:
		return types.Auth(msg)
	case http.StatusForbidden:
		return types.Authorization(msg)
	default:
		return types.Conflict(msg)
	}
}

// endpointLabel collapses ids and query strings into stable metric labels.
func endpointLabel(method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if i := strings.IndexAny(path, "0123456789"); i > 0 {
		path = path[:i] + ":id"
	}
	return method + " " + path
}
