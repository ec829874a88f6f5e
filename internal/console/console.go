// Package console is the interactive terminal front end. It renders the
// active view, reads commands line by line, and dispatches them to the
// application facade. All access decisions live in the navigation guard;
// the console only draws whatever view the guard resolves.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	service "github.com/gradepredict/console/internal/app"
	"github.com/gradepredict/console/internal/domain/history"
	"github.com/gradepredict/console/internal/domain/model"
	"github.com/gradepredict/console/internal/domain/nav"
	"github.com/gradepredict/console/internal/domain/types"
	"github.com/gradepredict/console/pkg/logger"
)

// Console drives the read-eval-render loop.
type Console struct {
	app    *service.Service
	in     io.Reader
	out    io.Writer
	logger logger.Logger
}

// Option applies a configuration option to the Console.
type Option func(*Console)

// WithLogger sets a custom logger for the console.
func WithLogger(log logger.Logger) Option {
	return func(c *Console) {
		if log != nil {
			c.logger = log
		}
	}
}

// New creates a Console bound to the given input and output streams.
func New(app *service.Service, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		app:    app,
		in:     in,
		out:    out,
		logger: logger.Named("console"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run bootstraps the application and processes commands until the input is
// exhausted, the user quits, or the context is canceled.
func (c *Console) Run(ctx context.Context) error {
	c.app.Start(ctx)
	c.render(ctx)

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			fmt.Fprintln(c.out, "bye")
			return nil
		}

		c.dispatch(ctx, line)
		c.flushNotices()
		c.render(ctx)
	}
}

func (c *Console) dispatch(ctx context.Context, line string) {
	cmd, rest := splitCommand(line)

	switch cmd {
	case "help":
		c.printHelp()
	case "go":
		c.app.Open(ctx, nav.Destination(rest))
	case "logout":
		c.app.Logout(ctx)
	case "login":
		c.cmdLogin(ctx, rest)
	case "register":
		c.cmdRegister(ctx, rest)
	case "captcha":
		if err := c.app.RefreshCaptcha(ctx); err != nil {
			c.printErr(err)
		}
	case "search":
		c.printStudents(c.app.Roster(rest))
	case "reload":
		if err := c.app.ReloadRoster(ctx); err != nil {
			c.printErr(err)
		}
	case "add":
		c.cmdAdd(ctx, rest)
	case "update":
		c.cmdUpdate(ctx, rest)
	case "delete":
		c.cmdDelete(ctx, rest)
	case "predict":
		c.cmdPredict(ctx, rest)
	case "filter":
		c.cmdFilter(ctx, rest)
	default:
		fmt.Fprintf(c.out, "unknown command %q; try help\n", cmd)
	}
}

func (c *Console) cmdLogin(ctx context.Context, rest string) {
	parts := strings.Fields(rest)
	if len(parts) < 3 {
		fmt.Fprintln(c.out, "usage: login <username> <password> <captcha answer>")
		return
	}
	answer := strings.Join(parts[2:], " ")
	if _, err := c.app.Login(ctx, parts[0], parts[1], answer); err != nil {
		c.printErr(err)
	}
}

func (c *Console) cmdRegister(ctx context.Context, rest string) {
	parts := strings.Fields(rest)
	if len(parts) != 3 {
		fmt.Fprintln(c.out, "usage: register <username> <password> <confirm password>")
		return
	}
	if err := c.app.Register(ctx, parts[0], parts[1], parts[2]); err != nil {
		c.printErr(err)
	}
}

func (c *Console) cmdAdd(ctx context.Context, rest string) {
	form, err := parseStudentForm(rest)
	if err != nil {
		fmt.Fprintln(c.out, err.Error())
		return
	}
	if err := c.app.AddStudent(ctx, form); err != nil {
		c.printErr(err)
	}
}

func (c *Console) cmdUpdate(ctx context.Context, rest string) {
	idStr, spec := splitCommand(rest)
	id, err := strconv.Atoi(idStr)
	if err != nil {
		fmt.Fprintln(c.out, "usage: update <id> <user id>|<name>|<study>|<attendance>|<participation>")
		return
	}
	form, err := parseStudentForm(spec)
	if err != nil {
		fmt.Fprintln(c.out, err.Error())
		return
	}
	if err := c.app.UpdateStudent(ctx, id, form); err != nil {
		c.printErr(err)
	}
}

func (c *Console) cmdDelete(ctx context.Context, rest string) {
	id, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		fmt.Fprintln(c.out, "usage: delete <id>")
		return
	}
	if err := c.app.RemoveStudent(ctx, id); err != nil {
		c.printErr(err)
	}
}

func (c *Console) cmdPredict(ctx context.Context, rest string) {
	id, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		fmt.Fprintln(c.out, "usage: predict <id>")
		return
	}
	if _, err := c.app.Predict(ctx, id); err != nil {
		c.printErr(err)
	}
}

// cmdFilter refetches history with an optional "grade start end" triple;
// "-" leaves a position unrestricted.
func (c *Console) cmdFilter(ctx context.Context, rest string) {
	parts := strings.Fields(rest)
	var f history.Filter
	if len(parts) > 0 && parts[0] != "-" {
		f.Grade = parts[0]
	}
	if len(parts) > 1 && parts[1] != "-" {
		f.Start = parts[1]
	}
	if len(parts) > 2 && parts[2] != "-" {
		f.End = parts[2]
	}

	entries, err := c.app.History(ctx, f)
	if err != nil {
		c.printErr(err)
		return
	}
	c.printHistory(entries)
}

// parseStudentForm parses "<user id>|<name>|<study>|<attendance>|<participation>".
// Pipe separation lets names contain spaces.
func parseStudentForm(spec string) (model.StudentForm, error) {
	parts := strings.Split(spec, "|")
	if len(parts) != 5 {
		return model.StudentForm{}, fmt.Errorf("expected <user id>|<name>|<study>|<attendance>|<participation>")
	}
	study, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return model.StudentForm{}, fmt.Errorf("study hours must be a number")
	}
	attendance, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil {
		return model.StudentForm{}, fmt.Errorf("attendance must be a number")
	}
	participation, err := strconv.ParseFloat(strings.TrimSpace(parts[4]), 64)
	if err != nil {
		return model.StudentForm{}, fmt.Errorf("participation must be a number")
	}
	return model.StudentForm{
		UserID:        strings.TrimSpace(parts[0]),
		Name:          strings.TrimSpace(parts[1]),
		Study:         study,
		Attendance:    attendance,
		Participation: participation,
	}, nil
}

func (c *Console) render(ctx context.Context) {
	switch c.app.View() {
	case nav.DestLogin:
		c.renderLogin()
	case nav.DestRoster:
		c.renderRoster()
	case nav.DestPredict:
		c.renderPredict()
	case nav.DestDashboard:
		c.renderDashboard(ctx)
	case nav.DestHistory:
		c.renderHistory(ctx)
	case nav.DestResult:
		c.renderResult()
	}
}

func (c *Console) renderLogin() {
	fmt.Fprintln(c.out, "== Sign in ==")
	if q := c.app.CaptchaQuestion(); q != "" {
		fmt.Fprintf(c.out, "captcha: %s\n", q)
	} else {
		fmt.Fprintln(c.out, "captcha unavailable; type 'captcha' to retry")
	}
}

func (c *Console) renderRoster() {
	fmt.Fprintln(c.out, "== Students ==")
	c.printStudents(c.app.Roster(""))
	if c.app.Predicting() {
		fmt.Fprintln(c.out, "(prediction in progress)")
	}
}

func (c *Console) renderPredict() {
	fmt.Fprintln(c.out, "== Predict a grade ==")
	c.printStudents(c.app.Roster(""))
	if c.app.Predicting() {
		fmt.Fprintln(c.out, "(prediction in progress)")
	} else {
		fmt.Fprintln(c.out, "type 'predict <id>' to run a prediction")
	}
}

func (c *Console) renderDashboard(ctx context.Context) {
	fmt.Fprintln(c.out, "== Dashboard ==")
	stats, err := c.app.DashboardStats(ctx)
	if err != nil {
		c.printErr(err)
		return
	}
	// AverageConfidence arrives pre-scaled to 0-100, unlike the 0-1
	// confidences on individual predictions.
	fmt.Fprintf(c.out, "students: %d  predictions: %d  avg confidence: %.1f%%\n",
		stats.TotalStudents, stats.TotalPredictions, stats.AverageConfidence)

	charts, err := c.app.DashboardCharts(ctx)
	if err != nil {
		c.printErr(err)
		return
	}
	for _, g := range charts.GradeDistribution {
		fmt.Fprintf(c.out, "  grade %s: %d\n", g.Grade, g.Count)
	}
}

func (c *Console) renderHistory(ctx context.Context) {
	fmt.Fprintln(c.out, "== Prediction history ==")
	entries, err := c.app.History(ctx, history.Filter{})
	if err != nil {
		c.printErr(err)
		return
	}
	c.printHistory(entries)
}

func (c *Console) renderResult() {
	fmt.Fprintln(c.out, "== Prediction result ==")
	view, ok := c.app.Result()
	if !ok {
		fmt.Fprintln(c.out, "no prediction to show; run one from the student list")
		return
	}
	fmt.Fprintf(c.out, "%s: grade %s (score %.1f)\n", view.Result.StudentName, view.Result.Grade, view.Result.Score)
	fmt.Fprintf(c.out, "%s, confidence %d%%\n", view.Classification.Label, view.Percent)
}

func (c *Console) printStudents(students []model.Student) {
	if len(students) == 0 {
		fmt.Fprintln(c.out, "(no students)")
		return
	}
	for _, s := range students {
		grade := "-"
		if s.PredictedGrade != nil {
			grade = *s.PredictedGrade
		}
		fmt.Fprintf(c.out, "  #%d %s (%s)  study %.1fh  attendance %.0f%%  predicted %s\n",
			s.ID, s.Name, s.UserID, s.WeeklySelfStudyHours, s.AttendancePercentage, grade)
	}
}

func (c *Console) printHistory(entries []model.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "(no predictions)")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(c.out, "  %s  %s grade %s  confidence %.0f%%\n",
			e.CreatedAt, e.StudentName, e.Grade, e.Confidence*100)
	}
}

func (c *Console) flushNotices() {
	for _, n := range c.app.DrainNotices() {
		fmt.Fprintf(c.out, "[%s] %s\n", n.Level, n.Text)
	}
}

func (c *Console) printErr(err error) {
	fmt.Fprintln(c.out, types.UserMessage(err))
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `commands:
  login <username> <password> <captcha answer>
  register <username> <password> <confirm password>
  captcha                         fetch a new challenge
  go <view>                       dashboard | roster-management | predict | history
  search <query>                  filter the student list by name or user id
  reload                          refetch the student list
  add <user id>|<name>|<study>|<attendance>|<participation>
  update <id> <user id>|<name>|<study>|<attendance>|<participation>
  delete <id>
  predict <id>
  filter [grade] [start] [end]    history filters; '-' skips a position
  logout
  quit
`)
}

func splitCommand(line string) (string, string) {
	cmd, rest, _ := strings.Cut(line, " ")
	return cmd, strings.TrimSpace(rest)
}
