package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/paulmach/orb"
)

// RestaurantSummary is one entry of a listing or search result page.
type RestaurantSummary struct {
	ID            FlexID    `json:"id"`
	Name          string    `json:"name"`
	Cuisine       string    `json:"cuisine"`
	RatePerPerson int       `json:"ratePerPerson"`
	Rating        FlexFloat `json:"rating"`
	ImageURL      ImageRef  `json:"imageURL"`
}

// PriceIndicator renders the cost rating as a run of dollar signs.
func (r RestaurantSummary) PriceIndicator() string {
	return priceIndicator(r.RatePerPerson)
}

func priceIndicator(rate int) string {
	if rate <= 0 {
		return ""
	}
	return strings.Repeat("$", rate)
}

// Review is a customer review embedded in the restaurant detail.
type Review struct {
	ID           FlexID `json:"review_id"`
	Rating       int    `json:"rating"`
	Comment      string `json:"comment"`
	CreatedAt    string `json:"created_at"`
	CustomerName string `json:"customer_name"`
}

// LatLng is the location object used by the partner pages.
type LatLng struct {
	Lat FlexFloat `json:"lat"`
	Lng FlexFloat `json:"lng"`
}

// Restaurant is the detail record of GET restaurants/{id}/.
type Restaurant struct {
	ID               FlexID     `json:"restaurant_id"`
	Name             string     `json:"name"`
	CuisineType      string     `json:"cuisine_type"`
	CostRating       int        `json:"cost_rating"`
	Rating           FlexFloat  `json:"rating"`
	TimesBookedToday int        `json:"times_booked_today"`
	Description      string     `json:"description"`
	ContactInfo      string     `json:"contact_info"`
	Address          string     `json:"address"`
	City             string     `json:"city"`
	State            string     `json:"state"`
	Zip              string     `json:"zip,omitempty"`
	Zipcode          string     `json:"zipcode,omitempty"`
	Latitude         FlexFloat  `json:"latitude"`
	Longitude        FlexFloat  `json:"longitude"`
	Location         *LatLng    `json:"location,omitempty"`
	OpeningTime      string     `json:"opening_time,omitempty"`
	ClosingTime      string     `json:"closing_time,omitempty"`
	DaysOpen         []string   `json:"days_open,omitempty"`
	Photos           []string   `json:"photos"`
	Reviews          []Review   `json:"reviews"`
	TimeSlots        []TimeSlot `json:"available_time_slots,omitempty"`
	Approved         bool       `json:"approved,omitempty"`
}

// PostalCode returns whichever of zip or zipcode the API populated.
func (r Restaurant) PostalCode() string {
	if r.Zipcode != "" {
		return r.Zipcode
	}
	return r.Zip
}

// PriceIndicator renders the cost rating as a run of dollar signs.
func (r Restaurant) PriceIndicator() string {
	return priceIndicator(r.CostRating)
}

// Point returns the restaurant position, preferring the location object
// over the flat latitude and longitude fields. ok is false when neither is set.
func (r Restaurant) Point() (orb.Point, bool) {
	if r.Location != nil && (r.Location.Lat != 0 || r.Location.Lng != 0) {
		return orb.Point{float64(r.Location.Lng), float64(r.Location.Lat)}, true
	}
	if r.Latitude != 0 || r.Longitude != 0 {
		return orb.Point{float64(r.Longitude), float64(r.Latitude)}, true
	}
	return orb.Point{}, false
}

// TimeSlot is a bookable slot. The detail endpoint sends bare "HH:MM"
// strings, the availability endpoint sends objects.
type TimeSlot struct {
	ID        FlexID `json:"id"`
	Time      string `json:"time"`
	Available bool   `json:"available"`
	TableSize int    `json:"table_size"`
}

func (s *TimeSlot) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var t string
		if err := json.Unmarshal(b, &t); err != nil {
			return err
		}
		*s = TimeSlot{Time: t, Available: true}
		return nil
	}
	type plain TimeSlot
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*s = TimeSlot(p)
	return nil
}

// TimeSlotsResponse is the body of GET restaurants/{id}/time-slots/.
type TimeSlotsResponse struct {
	Slots []TimeSlot `json:"available_time_slots"`
}

// RestaurantForm carries the partner-editable fields of a restaurant. It is
// sent as multipart on create and JSON on update.
type RestaurantForm struct {
	ManagerID   string   `json:"manager_id,omitempty" yaml:"manager_id"`
	Name        string   `json:"name" yaml:"name" validate:"required"`
	CuisineType string   `json:"cuisine_type" yaml:"cuisine_type" validate:"required"`
	CostRating  int      `json:"cost_rating" yaml:"cost_rating" validate:"min=1,max=5"`
	Description string   `json:"description" yaml:"description"`
	Address     string   `json:"address" yaml:"address" validate:"required"`
	City        string   `json:"city" yaml:"city" validate:"required"`
	State       string   `json:"state" yaml:"state" validate:"required"`
	Zipcode     string   `json:"zipcode" yaml:"zipcode" validate:"required"`
	ContactInfo string   `json:"contact_info" yaml:"contact_info"`
	OpeningTime string   `json:"opening_time" yaml:"opening_time" validate:"required"`
	ClosingTime string   `json:"closing_time" yaml:"closing_time" validate:"required"`
	DaysOpen    []string `json:"days_open" yaml:"days_open" validate:"min=1,dive,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	TableSizes  []string `json:"table_sizes,omitempty" yaml:"table_sizes"`
	Latitude    float64  `json:"latitude,omitempty" yaml:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude   float64  `json:"longitude,omitempty" yaml:"longitude" validate:"omitempty,min=-180,max=180"`
	Photos      []string `json:"-" yaml:"photos"`
}

// RecurringSlotsRequest is the body of POST bookings/slots/recurring/.
type RecurringSlotsRequest struct {
	RestaurantID FlexID `json:"restaurant_id" yaml:"restaurant_id" validate:"required"`
	StartDate    string `json:"start_date" yaml:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" yaml:"end_date" validate:"required,datetime=2006-01-02"`
	TableSizes   []int  `json:"table_sizes" yaml:"table_sizes" validate:"min=1,dive,min=1"`
}
