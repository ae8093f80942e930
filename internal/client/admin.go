package client

import (
	"context"
	"net/http"

	"github.com/romato/romato/internal/models"
)

// AdminUnapproved lists restaurants waiting for approval.
func (c *Client) AdminUnapproved(ctx context.Context) ([]models.Restaurant, error) {
	var out []models.Restaurant
	if err := c.getJSON(ctx, "restaurants/admin/unapproved/", nil, true, "Failed to fetch unapproved restaurants", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminApproved lists approved restaurants.
func (c *Client) AdminApproved(ctx context.Context) ([]models.Restaurant, error) {
	var out []models.Restaurant
	if err := c.getJSON(ctx, "restaurants/admin/approved/", nil, true, "Failed to fetch restaurants", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminApprove(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "restaurants/admin/approve/" + id + "/",
		auth:     true,
		fallback: "Failed to approve restaurant",
	}, nil)
}

func (c *Client) AdminRemove(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method:   http.MethodDelete,
		endpoint: "restaurants/admin/remove/" + id + "/",
		auth:     true,
		fallback: "Failed to remove restaurant",
	}, nil)
}

// AdminDashboard fetches booking and listing statistics.
func (c *Client) AdminDashboard(ctx context.Context) (*models.Dashboard, error) {
	var d models.Dashboard
	if err := c.getJSON(ctx, "restaurants/admin/dashboard/", nil, true, "Failed to fetch dashboard", &d); err != nil {
		return nil, err
	}
	return &d, nil
}
