package service_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	service "github.com/gradepredict/console/internal/app"
	"github.com/gradepredict/console/internal/domain/history"
	"github.com/gradepredict/console/internal/domain/model"
	"github.com/gradepredict/console/internal/domain/nav"
	"github.com/gradepredict/console/internal/domain/result"
	"github.com/gradepredict/console/internal/domain/types"
	"github.com/gradepredict/console/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// fakeBackend scripts the full API surface for facade tests.
type fakeBackend struct {
	authedUser *model.User
	loginUser  *model.User
	loginErr   error

	students []model.Student
	listErr  error

	predictRes *model.PredictionResult
	predictErr error

	captchaQuestion string
	captchaErr      error

	registerErr error

	logoutCalls  int
	captchaCalls int
	listCalls    int
}

func (b *fakeBackend) Logout(_ context.Context) error {
	b.logoutCalls++
	b.authedUser = nil
	return nil
}

func (b *fakeBackend) CheckAuth(_ context.Context) (*model.User, error) {
	if b.authedUser == nil {
		return nil, types.Auth("no active session")
	}
	return b.authedUser, nil
}

func (b *fakeBackend) Login(_ context.Context, _, _, _ string) (*model.User, error) {
	if b.loginErr != nil {
		return nil, b.loginErr
	}
	b.authedUser = b.loginUser
	return b.loginUser, nil
}

func (b *fakeBackend) Register(_ context.Context, _, _, _ string) error {
	return b.registerErr
}

func (b *fakeBackend) Captcha(_ context.Context) (string, error) {
	b.captchaCalls++
	if b.captchaErr != nil {
		return "", b.captchaErr
	}
	return b.captchaQuestion, nil
}

func (b *fakeBackend) Students(_ context.Context) ([]model.Student, error) {
	b.listCalls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.students, nil
}

func (b *fakeBackend) AddStudent(_ context.Context, _ model.StudentForm) error { return nil }

func (b *fakeBackend) UpdateStudent(_ context.Context, _ int, _ model.StudentForm) error {
	return nil
}

func (b *fakeBackend) DeleteStudent(_ context.Context, _ int) error { return nil }

func (b *fakeBackend) Predict(_ context.Context, _ int) (*model.PredictionResult, error) {
	if b.predictErr != nil {
		return nil, b.predictErr
	}
	return b.predictRes, nil
}

func (b *fakeBackend) History(_ context.Context, _ url.Values) ([]model.HistoryEntry, error) {
	return nil, nil
}

func (b *fakeBackend) DashboardStats(_ context.Context) (*model.DashboardStats, error) {
	return &model.DashboardStats{TotalStudents: 1}, nil
}

func (b *fakeBackend) DashboardCharts(_ context.Context) (*model.DashboardCharts, error) {
	return &model.DashboardCharts{}, nil
}

func adminUser() *model.User {
	return &model.User{Username: "admin", Role: model.RoleAdmin}
}

func plainUser() *model.User {
	return &model.User{Username: "maria", Role: model.RoleUser}
}

func loginAs(ctx context.Context, app *service.Service, backend *fakeBackend, user *model.User) nav.Destination {
	backend.loginUser = user
	_ = app.RefreshCaptcha(ctx)
	dest, err := app.Login(ctx, user.Username, "secret123", "7")
	So(err, ShouldBeNil)
	return dest
}

func TestStart(t *testing.T) {
	Convey("Given a fresh application", t, func() {
		ctx := context.Background()

		Convey("When it starts with no server session", func() {
			backend := &fakeBackend{captchaQuestion: "3 + 4 = ?"}
			app := service.New(backend)

			dest := app.Start(ctx)

			Convey("Then it lands on login with a captcha primed", func() {
				So(dest, ShouldEqual, nav.DestLogin)
				So(app.Session().Authenticated, ShouldBeFalse)
				So(app.CaptchaQuestion(), ShouldEqual, "3 + 4 = ?")
			})

			Convey("And the stale server session was force-cleared first", func() {
				So(backend.logoutCalls, ShouldEqual, 1)
			})
		})
	})
}

func TestLoginFlow(t *testing.T) {
	Convey("Given an application at the login view", t, func() {
		ctx := context.Background()
		backend := &fakeBackend{
			captchaQuestion: "2 + 2 = ?",
			students:        []model.Student{{ID: 1, Name: "Ana Lee"}},
		}
		app := service.New(backend)
		app.Start(ctx)
		app.DrainNotices()

		Convey("When an admin logs in", func() {
			dest := loginAs(ctx, app, backend, adminUser())

			Convey("Then the redirect goes to the dashboard with a greeting", func() {
				So(dest, ShouldEqual, nav.DestDashboard)
				notices := app.DrainNotices()
				So(notices, ShouldHaveLength, 1)
				So(notices[0].Text, ShouldEqual, "Welcome, admin!")
			})
		})

		Convey("When a regular user logs in", func() {
			dest := loginAs(ctx, app, backend, plainUser())

			Convey("Then the redirect goes to roster management with the roster loaded", func() {
				So(dest, ShouldEqual, nav.DestRoster)
				So(app.Roster(""), ShouldHaveLength, 1)
			})
		})

		Convey("When the server rejects the credentials", func() {
			backend.loginErr = types.Auth("Invalid username or password")
			before := backend.captchaCalls
			dest, err := app.Login(ctx, "maria", "wrong", "4")

			Convey("Then the view stays on login and a fresh captcha is fetched", func() {
				So(errors.Is(err, types.ErrAuth), ShouldBeTrue)
				So(dest, ShouldEqual, nav.DestLogin)
				So(backend.captchaCalls, ShouldEqual, before+1)
			})
		})

		Convey("When the captcha answer is blank", func() {
			_, err := app.Login(ctx, "maria", "secret123", "  ")

			Convey("Then the attempt fails locally", func() {
				So(errors.Is(err, types.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestRegister(t *testing.T) {
	Convey("Given an application at the login view", t, func() {
		ctx := context.Background()
		backend := &fakeBackend{captchaQuestion: "1 + 1 = ?"}
		app := service.New(backend)
		app.Start(ctx)
		app.DrainNotices()

		Convey("When registration succeeds", func() {
			err := app.Register(ctx, "newuser", "secret123", "secret123")

			Convey("Then the user is told to sign in but is not authenticated", func() {
				So(err, ShouldBeNil)
				So(app.Session().Authenticated, ShouldBeFalse)
				notices := app.DrainNotices()
				So(notices, ShouldHaveLength, 1)
				So(notices[0].Text, ShouldEqual, "Registration successful! Please login.")
			})
		})

		Convey("When the username is taken", func() {
			backend.registerErr = types.Conflict("Username already exists")
			err := app.Register(ctx, "taken", "secret123", "secret123")

			Convey("Then the conflict surfaces with no notice", func() {
				So(errors.Is(err, types.ErrConflict), ShouldBeTrue)
				So(app.DrainNotices(), ShouldBeEmpty)
			})
		})
	})
}

func TestLogout(t *testing.T) {
	Convey("Given a signed-in user with a loaded roster", t, func() {
		ctx := context.Background()
		backend := &fakeBackend{
			captchaQuestion: "5 + 5 = ?",
			students:        []model.Student{{ID: 1, Name: "Ana Lee"}},
		}
		app := service.New(backend)
		app.Start(ctx)
		loginAs(ctx, app, backend, plainUser())
		So(app.Roster(""), ShouldHaveLength, 1)

		Convey("When the user logs out", func() {
			dest := app.Logout(ctx)

			Convey("Then the view, session, and cached roster all reset", func() {
				So(dest, ShouldEqual, nav.DestLogin)
				So(app.Session().Authenticated, ShouldBeFalse)
				So(app.Roster(""), ShouldBeEmpty)
			})
		})
	})
}

func TestGuardedNavigation(t *testing.T) {
	Convey("Given a signed-in regular user", t, func() {
		ctx := context.Background()
		backend := &fakeBackend{captchaQuestion: "6 + 1 = ?"}
		app := service.New(backend)
		app.Start(ctx)
		loginAs(ctx, app, backend, plainUser())

		Convey("When they open an admin-only view", func() {
			dest := app.Open(ctx, nav.DestDashboard)

			Convey("Then they are silently redirected to roster management", func() {
				So(dest, ShouldEqual, nav.DestRoster)
				So(app.View(), ShouldEqual, nav.DestRoster)
			})
		})
	})
}

func TestPredictHandOff(t *testing.T) {
	Convey("Given a signed-in user", t, func() {
		ctx := context.Background()
		backend := &fakeBackend{
			captchaQuestion: "9 + 9 = ?",
			predictRes:      &model.PredictionResult{StudentName: "Ana Lee", Grade: "A", Score: 92.5, Confidence: 0.83},
		}
		app := service.New(backend)
		app.Start(ctx)
		loginAs(ctx, app, backend, plainUser())

		Convey("When a prediction completes", func() {
			dest, err := app.Predict(ctx, 1)

			Convey("Then the result view shows the classified outcome", func() {
				So(err, ShouldBeNil)
				So(dest, ShouldEqual, nav.DestResult)

				view, ok := app.Result()
				So(ok, ShouldBeTrue)
				So(view.Result.Grade, ShouldEqual, "A")
				So(view.Classification.Tier, ShouldEqual, result.TierExcellent)
				So(view.Percent, ShouldEqual, 83)
			})

			Convey("And navigating away discards the result", func() {
				app.Open(ctx, nav.DestRoster)

				_, ok := app.Result()
				So(ok, ShouldBeFalse)

				Convey("So revisiting the result view finds the empty state", func() {
					So(app.Open(ctx, nav.DestResult), ShouldEqual, nav.DestResult)
					_, ok := app.Result()
					So(ok, ShouldBeFalse)
				})
			})
		})

		Convey("When the prediction fails", func() {
			backend.predictErr = types.Conflict("ML model not loaded")
			dest, err := app.Predict(ctx, 1)

			Convey("Then the view does not change and the detail surfaces", func() {
				So(types.UserMessage(err), ShouldEqual, "ML model not loaded")
				So(dest, ShouldNotEqual, nav.DestResult)
			})
		})
	})
}

func TestHistoryFacade(t *testing.T) {
	Convey("Given a signed-in admin", t, func() {
		ctx := context.Background()
		backend := &fakeBackend{captchaQuestion: "8 + 2 = ?"}
		app := service.New(backend)
		app.Start(ctx)
		loginAs(ctx, app, backend, adminUser())

		Convey("When the dashboard data is fetched", func() {
			stats, err := app.DashboardStats(ctx)
			So(err, ShouldBeNil)
			So(stats.TotalStudents, ShouldEqual, 1)

			charts, err := app.DashboardCharts(ctx)
			So(err, ShouldBeNil)
			So(charts, ShouldNotBeNil)
		})

		Convey("When history is fetched with a filter", func() {
			_, err := app.History(ctx, history.Filter{Grade: "ALL"})
			So(err, ShouldBeNil)
		})
	})
}
