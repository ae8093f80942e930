package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/romato/romato/internal/models"
)

const myBookingsRoute = "/my-bookings"

type BookCmd struct {
	SlotID   string `arg:"" help:"Time slot ID, see the slots command"`
	People   int    `help:"Party size" default:"2"`
	Phone    string `help:"Contact phone number" required:""`
	Request  string `help:"Special request"`
	Occasion string `help:"Occasion, e.g. birthday"`
}

func (c *BookCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, "/book-restaurant", func(app *App) error {
		var booking *models.Booking
		err := app.Authorized(ctx, func(ctx context.Context) error {
			var err error
			booking, err = app.API.CreateBooking(ctx, models.CreateBookingRequest{
				SlotID:         models.FlexID(c.SlotID),
				NumberOfPeople: c.People,
				SpecialRequest: c.Request,
				Occasion:       c.Occasion,
				PhoneNumber:    c.Phone,
			})
			return err
		})
		if err != nil {
			return err
		}

		app.printf("Booking %s confirmed for %d", booking.ID, booking.NumberOfPeople)
		if booking.RestaurantName != "" {
			app.printf(" at %s", booking.RestaurantName)
		}
		app.println()
		return nil
	})
}

type BookingsCmd struct{}

func (c *BookingsCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, myBookingsRoute, func(app *App) error {
		var bookings []models.Booking
		err := app.Authorized(ctx, func(ctx context.Context) error {
			var err error
			bookings, err = app.API.MyBookings(ctx)
			return err
		})
		if err != nil {
			return err
		}

		if len(bookings) == 0 {
			app.println("No bookings yet.")
			return nil
		}

		tw := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tRESTAURANT\tWHEN\tPEOPLE\tSTATUS")
		for _, b := range bookings {
			name := b.RestaurantName
			if name == "" {
				name = string(b.RestaurantID)
			}
			when := b.SlotDatetime
			if when == "" {
				when = b.BookingDatetime
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", b.ID, name, when, b.NumberOfPeople, b.Status)
		}
		return tw.Flush()
	})
}

type CancelCmd struct {
	ID string `arg:"" help:"Booking ID"`
}

func (c *CancelCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, myBookingsRoute, func(app *App) error {
		err := app.Authorized(ctx, func(ctx context.Context) error {
			return app.API.CancelBooking(ctx, c.ID)
		})
		if err != nil {
			return err
		}
		app.printf("Booking %s cancelled\n", c.ID)
		return nil
	})
}

type ReviewCmd struct {
	RestaurantID string `arg:"" help:"Restaurant ID"`
	Rating       int    `help:"Rating from 1 to 5" required:""`
	Comment      string `help:"Comment"`
}

func (c *ReviewCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, "/reviews", func(app *App) error {
		var review *models.Review
		err := app.Authorized(ctx, func(ctx context.Context) error {
			var err error
			review, err = app.API.CreateReview(ctx, models.ReviewRequest{
				RestaurantID: models.FlexID(c.RestaurantID),
				Rating:       c.Rating,
				Comment:      c.Comment,
			})
			return err
		})
		if err != nil {
			return err
		}
		app.printf("Review %s posted\n", review.ID)
		return nil
	})
}
