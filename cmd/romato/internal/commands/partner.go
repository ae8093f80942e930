package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/romato/romato/internal/discovery"
	"github.com/romato/romato/internal/guard"
	"github.com/romato/romato/internal/models"
)

// PartnerCmd groups the restaurant manager commands.
type PartnerCmd struct {
	Restaurants PartnerRestaurantsCmd `cmd:"" help:"List your restaurants"`
	Create      PartnerCreateCmd      `cmd:"" help:"Register a restaurant from a YAML file"`
	Update      PartnerUpdateCmd      `cmd:"" help:"Update a restaurant from a YAML file"`
	Slots       PartnerSlotsCmd       `cmd:"" help:"Create recurring time slots"`
}

type PartnerRestaurantsCmd struct{}

func (c *PartnerRestaurantsCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, guard.PartnerDashboardRoute, func(app *App) error {
		var restaurants []models.Restaurant
		err := app.Authorized(ctx, func(ctx context.Context) error {
			var err error
			restaurants, err = app.API.MyRestaurants(ctx)
			return err
		})
		if err != nil {
			return err
		}

		if len(restaurants) == 0 {
			app.println("No restaurants yet.")
			app.println()
			app.println("To register one:")
			app.println("  romato partner create restaurant.yaml")
			return nil
		}
		return printRestaurants(app.Out, restaurants)
	})
}

type PartnerCreateCmd struct {
	File string `arg:"" help:"Restaurant YAML file" type:"existingfile"`
}

func (c *PartnerCreateCmd) Run(ctx context.Context, globals *Globals) error {
	form, err := loadRestaurantForm(c.File)
	if err != nil {
		return err
	}

	return globals.run(ctx, "/partner/restaurants/new", func(app *App) error {
		var created json.RawMessage
		err := app.Authorized(ctx, func(ctx context.Context) error {
			var err error
			created, err = app.API.CreateRestaurant(ctx, form)
			return err
		})
		if err != nil {
			return err
		}

		app.printf("Submitted %s for approval\n", form.Name)
		var r models.Restaurant
		if json.Unmarshal(created, &r) == nil && r.ID != "" {
			app.printf("Restaurant ID: %s\n", r.ID)
		}
		return nil
	})
}

type PartnerUpdateCmd struct {
	ID   string `arg:"" help:"Restaurant ID"`
	File string `arg:"" help:"Restaurant YAML file" type:"existingfile"`
}

func (c *PartnerUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	form, err := loadRestaurantForm(c.File)
	if err != nil {
		return err
	}

	return globals.run(ctx, "/partner/restaurants/"+c.ID+"/edit", func(app *App) error {
		err := app.Authorized(ctx, func(ctx context.Context) error {
			_, err := app.API.UpdateRestaurant(ctx, c.ID, form)
			return err
		})
		if err != nil {
			return err
		}
		app.printf("Updated restaurant %s\n", c.ID)
		return nil
	})
}

type PartnerSlotsCmd struct {
	RestaurantID string `arg:"" help:"Restaurant ID"`
	From         string `help:"First date as YYYY-MM-DD" required:""`
	To           string `help:"Last date as YYYY-MM-DD" required:""`
	TableSizes   []int  `help:"Table sizes to create slots for" default:"2,4"`
}

func (c *PartnerSlotsCmd) Run(ctx context.Context, globals *Globals) error {
	from, err := discovery.ParseDate(c.From)
	if err != nil {
		return err
	}
	to, err := discovery.ParseDate(c.To)
	if err != nil {
		return err
	}
	if to.Before(from) {
		return errors.New("--to must not be before --from")
	}

	return globals.run(ctx, "/partner/slots", func(app *App) error {
		err := app.Authorized(ctx, func(ctx context.Context) error {
			return app.API.CreateRecurringSlots(ctx, models.RecurringSlotsRequest{
				RestaurantID: models.FlexID(c.RestaurantID),
				StartDate:    from.Format(discovery.DateLayout),
				EndDate:      to.Format(discovery.DateLayout),
				TableSizes:   c.TableSizes,
			})
		})
		if err != nil {
			return err
		}
		app.printf("Created slots for restaurant %s from %s to %s\n", c.RestaurantID, c.From, c.To)
		return nil
	})
}

// loadRestaurantForm reads a restaurant form. Photo paths are relative to
// the file.
func loadRestaurantForm(path string) (models.RestaurantForm, error) {
	var form models.RestaurantForm

	f, err := os.Open(path)
	if err != nil {
		return form, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&form); err != nil && !errors.Is(err, io.EOF) {
		return form, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i, p := range form.Photos {
		if !filepath.IsAbs(p) {
			form.Photos[i] = filepath.Join(dir, p)
		}
	}
	return form, nil
}

func printRestaurants(w io.Writer, restaurants []models.Restaurant) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCUISINE\tCITY\tSTATUS")
	for _, r := range restaurants {
		status := "pending"
		if r.Approved {
			status = "approved"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.CuisineType, r.City, status)
	}
	return tw.Flush()
}
