package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/romato/romato/internal/guard"
	"github.com/romato/romato/internal/models"
)

// AdminCmd groups the moderation commands.
type AdminCmd struct {
	Unapproved AdminUnapprovedCmd `cmd:"" help:"List restaurants awaiting approval"`
	Approved   AdminApprovedCmd   `cmd:"" help:"List approved restaurants"`
	Approve    AdminApproveCmd    `cmd:"" help:"Approve a restaurant"`
	Remove     AdminRemoveCmd     `cmd:"" help:"Remove a restaurant"`
	Dashboard  AdminDashboardCmd  `cmd:"" help:"Show booking and listing statistics"`
}

type AdminUnapprovedCmd struct{}

func (c *AdminUnapprovedCmd) Run(ctx context.Context, globals *Globals) error {
	return adminList(ctx, globals, false)
}

type AdminApprovedCmd struct{}

func (c *AdminApprovedCmd) Run(ctx context.Context, globals *Globals) error {
	return adminList(ctx, globals, true)
}

func adminList(ctx context.Context, globals *Globals, approved bool) error {
	return globals.run(ctx, guard.AdminRoute, func(app *App) error {
		var restaurants []models.Restaurant
		err := app.Authorized(ctx, func(ctx context.Context) error {
			var err error
			if approved {
				restaurants, err = app.API.AdminApproved(ctx)
			} else {
				restaurants, err = app.API.AdminUnapproved(ctx)
			}
			return err
		})
		if err != nil {
			return err
		}
		if len(restaurants) == 0 {
			app.println("No restaurants.")
			return nil
		}
		return printRestaurants(app.Out, restaurants)
	})
}

type AdminApproveCmd struct {
	ID string `arg:"" help:"Restaurant ID"`
}

func (c *AdminApproveCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, guard.AdminRoute, func(app *App) error {
		err := app.Authorized(ctx, func(ctx context.Context) error {
			return app.API.AdminApprove(ctx, c.ID)
		})
		if err != nil {
			return err
		}
		app.printf("Approved restaurant %s\n", c.ID)
		return nil
	})
}

type AdminRemoveCmd struct {
	ID string `arg:"" help:"Restaurant ID"`
}

func (c *AdminRemoveCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, guard.AdminRoute, func(app *App) error {
		err := app.Authorized(ctx, func(ctx context.Context) error {
			return app.API.AdminRemove(ctx, c.ID)
		})
		if err != nil {
			return err
		}
		app.printf("Removed restaurant %s\n", c.ID)
		return nil
	})
}

type AdminDashboardCmd struct{}

func (c *AdminDashboardCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, guard.AdminRoute+"/dashboard", func(app *App) error {
		var d *models.Dashboard
		err := app.Authorized(ctx, func(ctx context.Context) error {
			var err error
			d, err = app.API.AdminDashboard(ctx)
			return err
		})
		if err != nil {
			return err
		}

		if d.DateRange.Start != "" {
			app.printf("Period:              %s to %s\n", d.DateRange.Start, d.DateRange.End)
		}
		app.printf("Total bookings:      %d\n", d.TotalBookings)
		for _, s := range d.BookingsByStatus {
			app.printf("  %-18s %d\n", s.Status+":", s.Count)
		}
		app.printf("New restaurants:     %d\n", d.NewRestaurants)
		app.printf("Pending restaurants: %d\n", d.PendingRestaurants)

		if len(d.TopRestaurants) > 0 {
			app.println()
			tw := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TOP\tNAME\tBOOKINGS\tRATING")
			for i, r := range d.TopRestaurants {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f\n", i+1, r.Name, r.BookingCount, float64(r.AvgRating))
			}
			return tw.Flush()
		}
		return nil
	})
}
