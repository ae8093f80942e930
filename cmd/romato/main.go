package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/romato/romato/cmd/romato/internal/commands"
	"github.com/romato/romato/internal/config"
)

var (
	version = "dev"
	cli     struct {
		Login    commands.LoginCmd    `cmd:"" help:"Log in"`
		Signup   commands.SignupCmd   `cmd:"" help:"Create an account and log in"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Log out and forget the stored session"`
		Whoami   commands.WhoamiCmd   `cmd:"" help:"Show the current session"`
		Browse   commands.BrowseCmd   `cmd:"" help:"List popular restaurants"`
		Search   commands.SearchCmd   `cmd:"" help:"Search restaurants"`
		Explore  commands.ExploreCmd  `cmd:"" help:"Interactive search and paging"`
		Show     commands.ShowCmd     `cmd:"" help:"Show a restaurant"`
		Slots    commands.SlotsCmd    `cmd:"" help:"Show available time slots"`
		Book     commands.BookCmd     `cmd:"" help:"Book a time slot"`
		Bookings commands.BookingsCmd `cmd:"" help:"List your bookings"`
		Cancel   commands.CancelCmd   `cmd:"" help:"Cancel a booking"`
		Review   commands.ReviewCmd   `cmd:"" help:"Review a restaurant"`
		Partner  commands.PartnerCmd  `cmd:"" help:"Manage your restaurants"`
		Admin    commands.AdminCmd    `cmd:"" help:"Moderate restaurants"`
		Debug    bool                 `help:"Enable debug mode."`
		Config   string               `help:"Config file (default ~/.romato/config.yaml)" type:"path" env:"ROMATO_CONFIG"`
		API      string               `name:"api" help:"API base URL, overrides the config file"`
		Session  string               `help:"Session directory, overrides the config file" type:"path"`
		Version  kong.VersionFlag
	}
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		ConfigPath: cli.Config,
		APIURL:     cli.API,
		SessionDir: cli.Session,
	})
	cmd.FatalIfErrorf(err)
}
