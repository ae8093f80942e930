package models

// Booking is a reservation as listed by GET bookings/my-bookings/.
type Booking struct {
	ID              FlexID `json:"booking_id"`
	CustomerID      FlexID `json:"customer_id"`
	SlotID          FlexID `json:"slot_id"`
	RestaurantID    FlexID `json:"restaurant_id"`
	RestaurantName  string `json:"restaurant_name,omitempty"`
	BookingDatetime string `json:"booking_datetime"`
	SlotDatetime    string `json:"slot_datetime,omitempty"`
	NumberOfPeople  int    `json:"number_of_people"`
	Status          string `json:"status"`
	SpecialRequest  string `json:"special_request,omitempty"`
	Occasion        string `json:"occasion,omitempty"`
}

// CreateBookingRequest is the body of POST bookings/create-booking/.
type CreateBookingRequest struct {
	SlotID         FlexID `json:"slot_id" validate:"required"`
	NumberOfPeople int    `json:"number_of_people" validate:"min=1,max=20"`
	SpecialRequest string `json:"special_request"`
	Occasion       string `json:"occasion"`
	PhoneNumber    string `json:"phone_number" validate:"required"`
}

// ReviewRequest is the body of POST bookings/reviews/create/.
type ReviewRequest struct {
	RestaurantID FlexID `json:"restaurant_id" validate:"required"`
	Rating       int    `json:"rating" validate:"min=1,max=5"`
	Comment      string `json:"comment"`
}

// StatusCount is one row of the bookings-by-status breakdown.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// TopRestaurant is one row of the admin dashboard leaderboard.
type TopRestaurant struct {
	RestaurantID FlexID    `json:"restaurant_id"`
	Name         string    `json:"name"`
	BookingCount int       `json:"booking_count"`
	AvgRating    FlexFloat `json:"avg_rating"`
}

// DateRange bounds the admin dashboard figures.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Dashboard is the body of GET restaurants/admin/dashboard/.
type Dashboard struct {
	TotalBookings      int             `json:"total_bookings"`
	BookingsByStatus   []StatusCount   `json:"bookings_by_status"`
	TopRestaurants     []TopRestaurant `json:"top_restaurants"`
	NewRestaurants     int             `json:"new_restaurants"`
	PendingRestaurants int             `json:"pending_restaurants"`
	DateRange          DateRange       `json:"date_range"`
}
