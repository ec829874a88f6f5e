package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gradepredict/console/internal/domain/captcha"
	"github.com/gradepredict/console/internal/domain/model"
	"github.com/gradepredict/console/internal/domain/session"
	"github.com/gradepredict/console/internal/domain/types"
	"github.com/gradepredict/console/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// fakeBackend scripts auth responses and records call order.
type fakeBackend struct {
	calls []string

	logoutErr   error
	checkUser   *model.User
	checkErr    error
	loginUser   *model.User
	loginErr    error
	registerErr error

	captchaQuestions []string
	captchaCalls     int
}

func (b *fakeBackend) Logout(_ context.Context) error {
	b.calls = append(b.calls, "logout")
	return b.logoutErr
}

func (b *fakeBackend) CheckAuth(_ context.Context) (*model.User, error) {
	b.calls = append(b.calls, "check-auth")
	return b.checkUser, b.checkErr
}

func (b *fakeBackend) Login(_ context.Context, _, _, _ string) (*model.User, error) {
	b.calls = append(b.calls, "login")
	return b.loginUser, b.loginErr
}

func (b *fakeBackend) Register(_ context.Context, _, _, _ string) error {
	b.calls = append(b.calls, "register")
	return b.registerErr
}

func (b *fakeBackend) Captcha(_ context.Context) (string, error) {
	b.calls = append(b.calls, "captcha")
	i := b.captchaCalls
	b.captchaCalls++
	if i < len(b.captchaQuestions) {
		return b.captchaQuestions[i], nil
	}
	return "", types.Transport("Server not reachable")
}

func networkCalls(calls []string) int {
	n := 0
	for _, c := range calls {
		if c == "login" || c == "register" {
			n++
		}
	}
	return n
}

func TestBootstrap(t *testing.T) {
	Convey("Given a fresh controller", t, func() {
		ctx := context.Background()

		Convey("When the probe finds a valid session", func() {
			backend := &fakeBackend{checkUser: &model.User{Username: "boss", Role: model.RoleAdmin}}
			ctrl := session.New(backend, captcha.New(backend))

			So(ctrl.State(), ShouldEqual, session.StateChecking)
			sess := ctrl.Bootstrap(ctx)

			Convey("Then the session is authenticated with the returned user", func() {
				So(sess.Authenticated, ShouldBeTrue)
				So(sess.User.Username, ShouldEqual, "boss")
				So(ctrl.State(), ShouldEqual, session.StateAuthenticated)
			})

			Convey("And the server session was force-cleared before the probe", func() {
				So(backend.calls, ShouldResemble, []string{"logout", "check-auth"})
			})
		})

		Convey("When the probe fails", func() {
			backend := &fakeBackend{checkErr: types.Auth("no active session")}
			ctrl := session.New(backend, captcha.New(backend))

			sess := ctrl.Bootstrap(ctx)

			Convey("Then the session is anonymous", func() {
				So(sess.Authenticated, ShouldBeFalse)
				So(sess.User, ShouldBeNil)
				So(ctrl.State(), ShouldEqual, session.StateAnonymous)
			})
		})

		Convey("When even the bootstrap logout fails", func() {
			backend := &fakeBackend{
				logoutErr: types.Transport("Server not reachable"),
				checkErr:  types.Transport("Server not reachable"),
			}
			ctrl := session.New(backend, captcha.New(backend))

			sess := ctrl.Bootstrap(ctx)

			Convey("Then the client still lands in a stable anonymous state", func() {
				So(sess.Authenticated, ShouldBeFalse)
				So(ctrl.State(), ShouldEqual, session.StateAnonymous)
			})
		})
	})
}

func TestLogin(t *testing.T) {
	Convey("Given an anonymous controller with a fresh captcha", t, func() {
		ctx := context.Background()

		newReady := func(backend *fakeBackend) (*session.Controller, *captcha.Flow) {
			flow := captcha.New(backend)
			So(flow.Refresh(ctx), ShouldBeNil)
			return session.New(backend, flow), flow
		}

		Convey("When the captcha answer is empty", func() {
			backend := &fakeBackend{captchaQuestions: []string{"3 + 4 = ?"}}
			ctrl, _ := newReady(backend)

			_, err := ctrl.Login(ctx, "ana", "secret", "")

			Convey("Then it fails with ValidationError and no network call", func() {
				So(errors.Is(err, types.ErrValidation), ShouldBeTrue)
				So(types.UserMessage(err), ShouldEqual, "Please answer the captcha.")
				So(networkCalls(backend.calls), ShouldEqual, 0)
			})
		})

		Convey("When username or password is missing", func() {
			backend := &fakeBackend{captchaQuestions: []string{"3 + 4 = ?"}}
			ctrl, _ := newReady(backend)

			_, err := ctrl.Login(ctx, "", "secret", "7")

			Convey("Then it fails locally", func() {
				So(errors.Is(err, types.ErrValidation), ShouldBeTrue)
				So(networkCalls(backend.calls), ShouldEqual, 0)
			})
		})

		Convey("When no challenge is loaded", func() {
			backend := &fakeBackend{}
			flow := captcha.New(backend)
			ctrl := session.New(backend, flow)

			_, err := ctrl.Login(ctx, "ana", "secret", "7")

			Convey("Then submission is refused locally", func() {
				So(errors.Is(err, types.ErrValidation), ShouldBeTrue)
				So(networkCalls(backend.calls), ShouldEqual, 0)
			})
		})

		Convey("When the server accepts the login", func() {
			backend := &fakeBackend{
				captchaQuestions: []string{"3 + 4 = ?"},
				loginUser:        &model.User{Username: "boss", Role: model.RoleAdmin},
			}
			ctrl, flow := newReady(backend)

			user, err := ctrl.Login(ctx, "boss", "secret", "7")

			Convey("Then the session becomes authenticated", func() {
				So(err, ShouldBeNil)
				So(user.Role, ShouldEqual, model.RoleAdmin)
				So(ctrl.Current().Authenticated, ShouldBeTrue)
				So(ctrl.State(), ShouldEqual, session.StateAuthenticated)
			})

			Convey("And the consumed challenge cannot be reused", func() {
				So(flow.Ready(), ShouldBeFalse)
			})
		})

		Convey("When the server rejects the login", func() {
			backend := &fakeBackend{
				captchaQuestions: []string{"3 + 4 = ?", "5 + 2 = ?"},
				loginErr:         types.Auth("Captcha incorrect"),
			}
			ctrl, flow := newReady(backend)
			before := flow.Question()

			_, err := ctrl.Login(ctx, "ana", "secret", "99")

			Convey("Then the session stays anonymous with the server message", func() {
				So(errors.Is(err, types.ErrAuth), ShouldBeTrue)
				So(types.UserMessage(err), ShouldEqual, "Captcha incorrect")
				So(ctrl.Current().Authenticated, ShouldBeFalse)
			})

			Convey("And a fresh challenge replaces the consumed one", func() {
				So(flow.Question(), ShouldNotEqual, before)
				So(flow.Ready(), ShouldBeTrue)
			})
		})
	})
}

func TestRegister(t *testing.T) {
	Convey("Given a controller", t, func() {
		ctx := context.Background()

		Convey("When the fields break the local rules", func() {
			backend := &fakeBackend{}
			ctrl := session.New(backend, captcha.New(backend))

			cases := map[string]struct {
				username, password, confirm string
				message                     string
			}{
				"short username": {"ab", "longenough", "longenough", "Username must be at least 3 characters"},
				"short password": {"ana", "tiny", "tiny", "Password must be at least 6 characters"},
				"mismatch":       {"ana", "longenough", "different", "Passwords do not match"},
			}

			Convey("Then each fails locally with the mirrored message", func() {
				for _, c := range cases {
					err := ctrl.Register(ctx, c.username, c.password, c.confirm)
					So(errors.Is(err, types.ErrValidation), ShouldBeTrue)
					So(types.UserMessage(err), ShouldEqual, c.message)
				}
				So(networkCalls(backend.calls), ShouldEqual, 0)
			})
		})

		Convey("When the server accepts the registration", func() {
			backend := &fakeBackend{}
			ctrl := session.New(backend, captcha.New(backend))

			err := ctrl.Register(ctx, "ana", "longenough", "longenough")

			Convey("Then it succeeds without authenticating", func() {
				So(err, ShouldBeNil)
				So(ctrl.Current().Authenticated, ShouldBeFalse)
			})
		})

		Convey("When the server rejects the registration", func() {
			backend := &fakeBackend{registerErr: types.Auth("Username already exists")}
			ctrl := session.New(backend, captcha.New(backend))

			err := ctrl.Register(ctx, "ana", "longenough", "longenough")

			Convey("Then the server message is surfaced", func() {
				So(errors.Is(err, types.ErrAuth), ShouldBeTrue)
				So(types.UserMessage(err), ShouldEqual, "Username already exists")
			})
		})
	})
}

func TestLogout(t *testing.T) {
	Convey("Given an authenticated controller", t, func() {
		ctx := context.Background()
		backend := &fakeBackend{
			captchaQuestions: []string{"3 + 4 = ?"},
			loginUser:        &model.User{Username: "ana", Role: model.RoleUser},
		}
		flow := captcha.New(backend)
		So(flow.Refresh(ctx), ShouldBeNil)
		ctrl := session.New(backend, flow)
		_, err := ctrl.Login(ctx, "ana", "secret", "7")
		So(err, ShouldBeNil)

		Convey("When logout succeeds server-side", func() {
			ctrl.Logout(ctx)

			Convey("Then the local session is anonymous", func() {
				So(ctrl.Current().Authenticated, ShouldBeFalse)
				So(ctrl.State(), ShouldEqual, session.StateAnonymous)
			})
		})

		Convey("When the server call fails", func() {
			backend.logoutErr = types.Transport("Server not reachable")
			ctrl.Logout(ctx)

			Convey("Then the local session is cleared regardless", func() {
				So(ctrl.Current().Authenticated, ShouldBeFalse)
				So(ctrl.State(), ShouldEqual, session.StateAnonymous)
			})
		})
	})
}
