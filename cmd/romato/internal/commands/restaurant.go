package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/romato/romato/internal/client"
	"github.com/romato/romato/internal/discovery"
	"github.com/romato/romato/internal/models"
)

type ShowCmd struct {
	ID     string `arg:"" help:"Restaurant ID"`
	Date   string `help:"Date as YYYY-MM-DD, for slot availability"`
	Time   string `help:"Time, 24-hour or 12-hour with AM/PM"`
	People int    `help:"Party size"`
	Near   string `help:"Your position as lat,lng to show the distance"`
}

func (c *ShowCmd) Run(ctx context.Context, globals *Globals) error {
	var near *orb.Point
	if c.Near != "" {
		p, err := parseLatLng(c.Near)
		if err != nil {
			return err
		}
		near = &p
	}

	at, err := availability(c.Date, c.Time, c.People)
	if err != nil {
		return err
	}

	return globals.run(ctx, restaurantsRoute+"/"+c.ID, func(app *App) error {
		r, err := app.API.Restaurant(ctx, c.ID, at)
		if err != nil {
			return err
		}

		app.printf("%s  %s\n", r.Name, r.PriceIndicator())
		app.printf("%s, rated %.1f\n", r.CuisineType, float64(r.Rating))
		if r.TimesBookedToday > 0 {
			app.printf("Booked %d times today\n", r.TimesBookedToday)
		}
		app.printf("%s, %s, %s %s\n", r.Address, r.City, r.State, r.PostalCode())
		if r.ContactInfo != "" {
			app.printf("Contact: %s\n", r.ContactInfo)
		}
		if r.OpeningTime != "" {
			app.printf("Hours: %s-%s", r.OpeningTime, r.ClosingTime)
			if len(r.DaysOpen) > 0 {
				app.printf(" on %s", strings.Join(r.DaysOpen, ", "))
			}
			app.println()
		}

		if pos, ok := r.Point(); ok && near != nil {
			app.printf("Distance: %.1f km\n", geo.Distance(*near, pos)/1000)
		}

		if r.Description != "" {
			app.printf("\n%s\n", r.Description)
		}

		if len(r.TimeSlots) > 0 {
			times := make([]string, 0, len(r.TimeSlots))
			for _, s := range r.TimeSlots {
				times = append(times, s.Time)
			}
			app.printf("\nAvailable: %s\n", strings.Join(times, " "))
		}

		if len(r.Reviews) > 0 {
			app.printf("\nReviews:\n")
			for _, rv := range r.Reviews {
				app.printf("  %s %s: %s\n", strings.Repeat("*", rv.Rating), rv.CustomerName, rv.Comment)
			}
		}
		return nil
	})
}

type SlotsCmd struct {
	ID     string `arg:"" help:"Restaurant ID"`
	Date   string `help:"Date as YYYY-MM-DD" required:""`
	Time   string `help:"Time, 24-hour or 12-hour with AM/PM" default:"19:00"`
	People int    `help:"Party size" default:"2"`
}

func (c *SlotsCmd) Run(ctx context.Context, globals *Globals) error {
	at, err := availability(c.Date, c.Time, c.People)
	if err != nil {
		return err
	}

	return globals.run(ctx, restaurantsRoute+"/"+c.ID, func(app *App) error {
		slots, err := app.API.TimeSlots(ctx, c.ID, at)
		if err != nil {
			return err
		}
		printSlots(app, slots)
		return nil
	})
}

func printSlots(app *App, slots []models.TimeSlot) {
	if len(slots) == 0 {
		app.println("No time slots available.")
		return
	}

	tw := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tTIME\tTABLE\tAVAILABLE")
	for _, s := range slots {
		available := "yes"
		if !s.Available {
			available = "no"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.Time, s.TableSize, available)
	}
	tw.Flush()
}

func availability(date, at string, people int) (client.Availability, error) {
	var a client.Availability
	if date != "" {
		d, err := discovery.ParseDate(date)
		if err != nil {
			return a, err
		}
		a.Date = d.Format(discovery.DateLayout)
	}
	if at != "" {
		t, err := discovery.NormalizeTime(at)
		if err != nil {
			return a, err
		}
		a.Time = t
	}
	a.People = people
	return a, nil
}

// parseLatLng parses "lat,lng" into an orb point, which is lng,lat ordered.
func parseLatLng(s string) (orb.Point, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return orb.Point{}, fmt.Errorf("invalid position %q, use lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return orb.Point{}, fmt.Errorf("invalid latitude %q", latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil || lng < -180 || lng > 180 {
		return orb.Point{}, fmt.Errorf("invalid longitude %q", lngStr)
	}
	return orb.Point{lng, lat}, nil
}
