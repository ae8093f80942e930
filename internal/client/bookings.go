package client

import (
	"context"
	"net/http"

	"github.com/romato/romato/internal/models"
)

// CreateBooking reserves a slot for the signed in customer.
func (c *Client) CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error) {
	var b models.Booking
	if err := c.sendJSON(ctx, http.MethodPost, "bookings/create-booking/", req, true, "Failed to create booking", &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// MyBookings lists the signed in customer's bookings.
func (c *Client) MyBookings(ctx context.Context) ([]models.Booking, error) {
	var out []models.Booking
	if err := c.getJSON(ctx, "bookings/my-bookings/", nil, true, "Failed to fetch bookings", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelBooking cancels one of the signed in customer's bookings.
func (c *Client) CancelBooking(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "bookings/my-bookings/" + id + "/cancel/",
		auth:     true,
		fallback: "Failed to cancel booking",
	}, nil)
}

// CreateRecurringSlots bulk-creates booking slots between two dates.
func (c *Client) CreateRecurringSlots(ctx context.Context, req models.RecurringSlotsRequest) error {
	return c.sendJSON(ctx, http.MethodPost, "bookings/slots/recurring/", req, true, "Failed to create time slots", nil)
}

// CreateReview submits a review of a restaurant.
func (c *Client) CreateReview(ctx context.Context, req models.ReviewRequest) (*models.Review, error) {
	var r models.Review
	if err := c.sendJSON(ctx, http.MethodPost, "bookings/reviews/create/", req, true, "Failed to submit review", &r); err != nil {
		return nil, err
	}
	return &r, nil
}
