package commands

import (
	"context"
	"errors"
	"time"

	"github.com/romato/romato/internal/guard"
	"github.com/romato/romato/internal/models"
	"github.com/romato/romato/internal/session"
)

type LoginCmd struct {
	Username string `arg:"" help:"Username"`
	Password string `help:"Password" required:"" env:"ROMATO_PASSWORD"`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if alreadySignedIn(ctx, app, guard.LoginRoute) {
		return nil
	}

	if err := app.Session.Login(ctx, c.Username, c.Password); err != nil {
		return err
	}

	st := app.Session.State()
	app.printf("Logged in as %s (%s)\n", st.User.Username, st.Role())
	app.printf("Continue at %s\n", guard.LandingFor(st.Role()))
	return nil
}

type SignupCmd struct {
	Username string `arg:"" help:"Username"`
	Email    string `help:"Email address" required:""`
	Password string `help:"Password" required:"" env:"ROMATO_PASSWORD"`
	Role     string `help:"Account type (Customer, RestaurantManager)" default:"Customer" enum:"Customer,RestaurantManager"`
	Phone    string `help:"Phone number"`
}

func (c *SignupCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	role, err := models.ParseRole(c.Role)
	if err != nil {
		return err
	}

	route := guard.SignupRoute
	if role == models.RoleRestaurantManager {
		route = "/partner/signup"
	}
	if alreadySignedIn(ctx, app, route) {
		return nil
	}

	err = app.Session.Signup(ctx, models.RegisterRequest{
		Username: c.Username,
		Email:    c.Email,
		Password: c.Password,
		Role:     role,
		Phone:    c.Phone,
	})
	if err != nil {
		return err
	}

	st := app.Session.State()
	app.printf("Welcome, %s! Your %s account is ready.\n", st.User.Username, st.Role())
	app.printf("Continue at %s\n", guard.LandingFor(st.Role()))
	return nil
}

// alreadySignedIn applies a public route guard and reports a redirect.
func alreadySignedIn(ctx context.Context, app *App, route string) bool {
	err := app.Enter(ctx, route)
	var redirect *guard.RedirectError
	if !errors.As(err, &redirect) {
		return false
	}
	st := app.Session.State()
	app.printf("Already logged in as %s, continue at %s\n", st.User.Username, redirect.Target)
	return true
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Session.Logout()
	app.println("Logged out.")
	return nil
}

type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, "/profile", func(app *App) error {
		st := app.Session.State()

		app.printf("Username:    %s\n", st.User.Username)
		app.printf("Email:       %s\n", st.User.Email)
		app.printf("Role:        %s\n", st.Role())
		app.printf("Fingerprint: %s\n", session.Fingerprint(st.Tokens.Refresh))

		if claims, err := session.ParseAccessClaims(st.Tokens.Access); err == nil && !claims.ExpiresAt.IsZero() {
			state := "valid"
			if claims.Expired(time.Now()) {
				state = "expired"
			}
			app.printf("Expires:     %s (%s)\n", claims.ExpiresAt.Local().Format(time.RFC1123), state)
		}
		return nil
	})
}
