package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/romato/romato/internal/models"
)

// Availability narrows a restaurant lookup to a date, time and party size.
type Availability struct {
	Date   string
	Time   string
	People int
}

func (a Availability) query() *Query {
	q := NewQuery()
	q.SetNonEmpty("date", a.Date)
	q.SetNonEmpty("time", a.Time)
	if a.People > 0 {
		q.SetInt("people", a.People)
	}
	return q
}

// HotRestaurants fetches one page of the default listing. The body is
// returned undecoded since its pagination shape varies.
func (c *Client) HotRestaurants(ctx context.Context, page, pageSize int) (json.RawMessage, error) {
	var raw json.RawMessage
	q := NewQuery().SetInt("page", page).SetInt("pageSize", pageSize)
	if err := c.getJSON(ctx, "restaurants/hot/", q, false, "Failed to fetch restaurants", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SearchRestaurants issues a filtered listing with a caller-built query.
func (c *Client) SearchRestaurants(ctx context.Context, q *Query) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "restaurants/search/", q, false, "Failed to search restaurants", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Restaurant fetches the detail record of a restaurant.
func (c *Client) Restaurant(ctx context.Context, id string, at Availability) (*models.Restaurant, error) {
	var r models.Restaurant
	if err := c.getJSON(ctx, "restaurants/"+id+"/", at.query(), false, "Failed to fetch restaurant", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// TimeSlots lists bookable slots around the requested time.
func (c *Client) TimeSlots(ctx context.Context, id string, at Availability) ([]models.TimeSlot, error) {
	var resp models.TimeSlotsResponse
	if err := c.getJSON(ctx, "restaurants/"+id+"/time-slots/", at.query(), false, "Failed to fetch time slots", &resp); err != nil {
		return nil, err
	}
	return resp.Slots, nil
}

// MyRestaurants lists the listings owned by the signed in partner.
func (c *Client) MyRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	var out []models.Restaurant
	if err := c.getJSON(ctx, "restaurants/my-restaurants/", nil, true, "Failed to fetch your restaurants", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRestaurant registers a restaurant as a multipart form, uploading
// any photos named in form.Photos.
func (c *Client) CreateRestaurant(ctx context.Context, form models.RestaurantForm) (json.RawMessage, error) {
	if err := validate.Struct(form); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	body, contentType, err := encodeRestaurantForm(form)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	err = c.do(ctx, request{
		method:      http.MethodPost,
		endpoint:    "restaurants/create/",
		body:        body,
		contentType: contentType,
		auth:        true,
		fallback:    "Failed to create restaurant",
	}, &raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

type restaurantUpdate struct {
	models.RestaurantForm
	RestaurantID string `json:"restaurant_id"`
}

// UpdateRestaurant replaces the editable fields of an existing restaurant.
func (c *Client) UpdateRestaurant(ctx context.Context, id string, form models.RestaurantForm) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.sendJSON(ctx, http.MethodPut, "restaurants/update/",
		restaurantUpdate{RestaurantForm: form, RestaurantID: id},
		true, "Failed to update restaurant", &raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func encodeRestaurantForm(form models.RestaurantForm) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"manager_id", form.ManagerID},
		{"name", form.Name},
		{"cuisine_type", form.CuisineType},
		{"cost_rating", strconv.Itoa(form.CostRating)},
		{"description", form.Description},
		{"address", form.Address},
		{"city", form.City},
		{"state", form.State},
		{"zipcode", form.Zipcode},
		{"contact_info", form.ContactInfo},
		{"opening_time", form.OpeningTime},
		{"closing_time", form.ClosingTime},
	}
	for _, day := range form.DaysOpen {
		fields = append(fields, [2]string{"days_open", day})
	}
	for _, size := range form.TableSizes {
		fields = append(fields, [2]string{"table_sizes", size})
	}
	if form.Latitude != 0 || form.Longitude != 0 {
		fields = append(fields,
			[2]string{"location_lat", strconv.FormatFloat(form.Latitude, 'f', -1, 64)},
			[2]string{"location_lng", strconv.FormatFloat(form.Longitude, 'f', -1, 64)},
		)
	}

	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}

	for _, path := range form.Photos {
		if err := attachFile(w, "photos", path); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open photo: %w", err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to copy photo %s: %w", path, err)
	}
	return nil
}
