package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/romato/romato/internal/client"
	"github.com/romato/romato/internal/config"
	"github.com/romato/romato/internal/discovery"
	"github.com/romato/romato/internal/guard"
	"github.com/romato/romato/internal/logger"
	"github.com/romato/romato/internal/session"
	"github.com/romato/romato/internal/telemetry"
)

type Globals struct {
	Debug      bool
	Version    string
	ConfigPath string
	APIURL     string
	SessionDir string

	// Out and In default to stdout and stdin.
	Out io.Writer
	In  io.Reader
}

// App is the client wired together for one command invocation.
type App struct {
	Config  *config.Config
	API     *client.Client
	Session *session.Manager
	Router  *guard.Router
	Out     io.Writer
	In      io.Reader

	// Route is the last navigation requested by the session.
	Route string

	shutdown func(context.Context) error
}

// Open loads configuration, sets up logging and rehydrates the stored
// session. Callers must Close the app.
func (g *Globals) Open(ctx context.Context) (*App, error) {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return nil, err
	}
	if g.APIURL != "" {
		cfg.API.BaseURL = g.APIURL
	}
	if g.SessionDir != "" {
		cfg.Session.Dir = g.SessionDir
	}

	log.Logger = logger.SetupWithOptions(g.Debug, logger.Options{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})

	app := &App{
		Config:   cfg,
		Router:   guard.NewRouter(guard.DefaultRules()),
		Out:      g.Out,
		In:       g.In,
		shutdown: func(context.Context) error { return nil },
	}
	if app.Out == nil {
		app.Out = os.Stdout
	}
	if app.In == nil {
		app.In = os.Stdin
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Options{
			ServiceName: "romato-cli",
			Version:     g.Version,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Interval:    cfg.Telemetry.Interval,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		} else {
			app.shutdown = shutdown
		}
	}

	store, err := session.NewFileStore(cfg.Session.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	api := client.New(cfg.ClientConfig())
	app.Session = session.NewManager(api, store, session.NavigatorFunc(app.navigate))
	app.API = api.WithTokenSource(app.Session)

	app.Session.Initialize(ctx)

	return app, nil
}

func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("telemetry shutdown failed")
	}
}

func (a *App) navigate(route string) {
	log.Debug().Str("route", route).Msg("navigate")
	a.Route = route
}

// Enter applies the route guard for path once the session has settled.
func (a *App) Enter(ctx context.Context, path string) error {
	d, err := a.Router.Enforce(ctx, a.Session, path)
	if err != nil {
		return err
	}
	err = d.Err()
	var redirect *guard.RedirectError
	if errors.As(err, &redirect) && redirect.Target == guard.LoginRoute {
		return fmt.Errorf("%w, run `romato login` first", err)
	}
	return err
}

// Authorized runs fn and, when the API rejects the access token, refreshes
// the session once and runs fn again.
func (a *App) Authorized(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return err
	}

	log.Debug().Msg("access token rejected, refreshing session")
	if !a.Session.Refresh(ctx) {
		return fmt.Errorf("session expired, run `romato login`: %w", err)
	}
	return fn(ctx)
}

// Engine builds a discovery engine from the configured defaults.
func (a *App) Engine() *discovery.Engine {
	criteria := discovery.DefaultCriteria()
	if a.Config.Discovery.DefaultCity != "" {
		criteria.Location = a.Config.Discovery.DefaultCity
	}
	return discovery.New(a.API,
		discovery.WithPageSize(a.Config.Discovery.PageSize),
		discovery.WithCriteria(criteria),
	)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.Out, args...)
}

// run opens the app, enters path and calls fn.
func (g *Globals) run(ctx context.Context, path string, fn func(*App) error) error {
	app, err := g.Open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Enter(ctx, path); err != nil {
		return err
	}
	return fn(app)
}

func (a *App) print(s string) {
	fmt.Fprint(a.Out, s)
}
