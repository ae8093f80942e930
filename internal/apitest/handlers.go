package apitest

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/romato/romato/internal/models"
)

const userContextKey = "user"

// AccessTTL is the lifetime of minted access tokens.
const AccessTTL = 15 * time.Minute

func (s *Server) mintAccess(u models.User) (string, error) {
	claims := jwt.MapClaims{
		"token_type": "access",
		"user_id":    string(u.ID),
		"username":   u.Username,
		"role":       string(u.Role),
		"iat":        time.Now().Unix(),
		"exp":        time.Now().Add(AccessTTL).Unix(),
		"jti":        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request"})
	}

	s.mu.Lock()
	acct, ok := s.accounts[req.Username]
	s.mu.Unlock()
	if !ok || acct.password != req.Password {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
	}

	access, err := s.mintAccess(acct.user)
	if err != nil {
		return err
	}
	refresh := uuid.NewString()

	s.mu.Lock()
	s.refresh[refresh] = acct.user.Username
	s.mu.Unlock()

	return c.JSON(http.StatusOK, models.LoginResponse{
		User:   acct.user,
		Tokens: models.Tokens{Access: access, Refresh: refresh},
	})
}

func (s *Server) register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[req.Username]; exists {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"username": []string{"A user with that username already exists."},
		})
	}
	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Email, req.Email) {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"email": []string{"user with this email already exists."},
			})
		}
	}

	u := s.addUserLocked(req.Username, req.Password, req.Email, req.Role)
	return c.JSON(http.StatusCreated, u)
}

func (s *Server) refreshToken(c echo.Context) error {
	var req models.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request"})
	}

	s.mu.Lock()
	username, ok := s.refresh[req.Refresh]
	acct := s.accounts[username]
	s.mu.Unlock()

	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
	}

	access, err := s.mintAccess(acct.user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.RefreshResponse{Access: access})
}

func (s *Server) requireRole(role models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
			}

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
				return s.secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Given token not valid for any token type"})
			}

			if got, _ := claims["role"].(string); got != string(role) {
				return c.JSON(http.StatusForbidden, echo.Map{"detail": "You do not have permission to perform this action."})
			}

			c.Set(userContextKey, claims)
			return next(c)
		}
	}
}

func userID(c echo.Context) string {
	claims, _ := c.Get(userContextKey).(jwt.MapClaims)
	id, _ := claims["user_id"].(string)
	return id
}

func intParam(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v < 1 {
		return def
	}
	return v
}

func summarize(rs []models.Restaurant) []models.RestaurantSummary {
	out := make([]models.RestaurantSummary, 0, len(rs))
	for _, r := range rs {
		img := models.ImageRef("")
		if len(r.Photos) > 0 {
			img = models.ImageRef(r.Photos[0])
		}
		out = append(out, models.RestaurantSummary{
			ID:            r.ID,
			Name:          r.Name,
			Cuisine:       r.CuisineType,
			RatePerPerson: r.CostRating,
			Rating:        r.Rating,
			ImageURL:      img,
		})
	}
	return out
}

func (s *Server) listing(c echo.Context, city, query string) error {
	page := intParam(c, "page", 1)
	pageSize := intParam(c, "pageSize", 12)

	s.mu.Lock()
	var all []models.Restaurant
	for _, r := range s.restaurants {
		if r.Approved && matches(r, city, query) {
			all = append(all, r)
		}
	}
	shape := s.shape
	s.mu.Unlock()

	total := len(all)
	totalPages := max(1, int(math.Ceil(float64(total)/float64(pageSize))))
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)
	results := summarize(all[start:end])

	switch shape {
	case ShapeTotalPages:
		return c.JSON(http.StatusOK, echo.Map{"results": results, "totalPages": totalPages})
	case ShapeCount:
		return c.JSON(http.StatusOK, echo.Map{"results": results, "count": total})
	case ShapeResultsOnly:
		return c.JSON(http.StatusOK, echo.Map{"results": results})
	case ShapeArray:
		return c.JSON(http.StatusOK, results)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"results": results,
		"pagination": echo.Map{
			"currentPage": page,
			"totalPages":  totalPages,
			"pageSize":    pageSize,
			"totalCount":  total,
		},
	})
}

func (s *Server) hot(c echo.Context) error {
	return s.listing(c, "", "")
}

func (s *Server) search(c echo.Context) error {
	if c.QueryParam("time") != "" {
		if _, err := time.Parse("15:04", c.QueryParam("time")); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "Invalid date/time format. Use YYYY-MM-DD for date and HH:MM for time",
			})
		}
	}
	return s.listing(c, c.QueryParam("city"), c.QueryParam("query"))
}

func (s *Server) find(id string) (models.Restaurant, int, bool) {
	for i, r := range s.restaurants {
		if string(r.ID) == id {
			return r, i, true
		}
	}
	return models.Restaurant{}, -1, false
}

func (s *Server) restaurant(c echo.Context) error {
	s.mu.Lock()
	r, _, ok := s.find(c.Param("id"))
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Restaurant not found"})
	}
	return c.JSON(http.StatusOK, r)
}

func (s *Server) timeSlots(c echo.Context) error {
	s.mu.Lock()
	_, _, ok := s.find(c.Param("id"))
	slots := append([]models.TimeSlot{}, s.slots...)
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Restaurant not found"})
	}
	if c.QueryParam("date") == "" || c.QueryParam("time") == "" || c.QueryParam("people") == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Date, time, and number of people are required parameters"})
	}
	return c.JSON(http.StatusOK, models.TimeSlotsResponse{Slots: slots})
}

func (s *Server) myRestaurants(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Restaurants())
}

func (s *Server) createRestaurant(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Expected multipart form"})
	}
	name := form.Value["name"]
	if len(name) == 0 || name[0] == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"name": []string{"This field is required."}})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r := models.Restaurant{
		ID:          models.FlexID(fmt.Sprint(s.nextID)),
		Name:        name[0],
		CuisineType: c.FormValue("cuisine_type"),
		City:        c.FormValue("city"),
		DaysOpen:    form.Value["days_open"],
	}
	for _, fh := range form.File["photos"] {
		r.Photos = append(r.Photos, "https://img.example.com/uploads/"+fh.Filename)
	}
	s.restaurants = append(s.restaurants, r)

	return c.JSON(http.StatusCreated, r)
}

func (s *Server) updateRestaurant(c echo.Context) error {
	var req struct {
		models.RestaurantForm
		RestaurantID string `json:"restaurant_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, i, ok := s.find(req.RestaurantID)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Restaurant not found"})
	}
	r.Name = req.Name
	r.CuisineType = req.CuisineType
	r.City = req.City
	s.restaurants[i] = r

	return c.JSON(http.StatusOK, r)
}

func (s *Server) adminList(approved bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		out := []models.Restaurant{}
		for _, r := range s.Restaurants() {
			if r.Approved == approved {
				out = append(out, r)
			}
		}
		return c.JSON(http.StatusOK, out)
	}
}

func (s *Server) adminApprove(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, i, ok := s.find(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Restaurant not found"})
	}
	r.Approved = true
	s.restaurants[i] = r
	return c.JSON(http.StatusOK, echo.Map{"message": "Restaurant approved"})
}

func (s *Server) adminRemove(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, i, ok := s.find(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Restaurant not found"})
	}
	s.restaurants = append(s.restaurants[:i], s.restaurants[i+1:]...)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) adminDashboard(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := 0
	for _, r := range s.restaurants {
		if !r.Approved {
			pending++
		}
	}
	counts := map[string]int{}
	for _, b := range s.bookings {
		counts[b.Status]++
	}
	byStatus := []models.StatusCount{}
	for _, st := range []string{"Booked", "Cancelled", "Completed"} {
		if counts[st] > 0 {
			byStatus = append(byStatus, models.StatusCount{Status: st, Count: counts[st]})
		}
	}

	return c.JSON(http.StatusOK, models.Dashboard{
		TotalBookings:      len(s.bookings),
		BookingsByStatus:   byStatus,
		TopRestaurants:     []models.TopRestaurant{},
		PendingRestaurants: pending,
		DateRange:          models.DateRange{Start: "2024-06-01", End: "2024-06-30"},
	})
}

func (s *Server) createBooking(c echo.Context) error {
	var req models.CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid booking request"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.bookings {
		if b.SlotID == req.SlotID && b.Status == "Booked" {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "This time slot is no longer available"})
		}
	}

	s.nextID++
	b := models.Booking{
		ID:              models.FlexID(fmt.Sprint(s.nextID)),
		CustomerID:      models.FlexID(userID(c)),
		SlotID:          req.SlotID,
		BookingDatetime: time.Now().UTC().Format(time.RFC3339),
		NumberOfPeople:  req.NumberOfPeople,
		Status:          "Booked",
		SpecialRequest:  req.SpecialRequest,
		Occasion:        req.Occasion,
	}
	s.bookings = append(s.bookings, b)

	return c.JSON(http.StatusCreated, b)
}

func (s *Server) myBookings(c echo.Context) error {
	uid := userID(c)
	out := []models.Booking{}
	for _, b := range s.Bookings() {
		if string(b.CustomerID) == uid {
			out = append(out, b)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) cancelBooking(c echo.Context) error {
	uid := userID(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.bookings {
		if string(b.ID) != c.Param("id") {
			continue
		}
		if string(b.CustomerID) != uid {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Not your booking"})
		}
		if b.Status == "Cancelled" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Booking already cancelled"})
		}
		s.bookings[i].Status = "Cancelled"
		return c.JSON(http.StatusOK, echo.Map{"message": "Booking cancelled"})
	}
	return c.JSON(http.StatusNotFound, echo.Map{"error": "Booking not found"})
}

func (s *Server) recurringSlots(c echo.Context) error {
	var req models.RecurringSlotsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request"})
	}
	if req.StartDate > req.EndDate {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_date must be before end_date"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Slots created"})
}

func (s *Server) createReview(c echo.Context) error {
	var req models.ReviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return c.JSON(http.StatusCreated, models.Review{
		ID:      models.FlexID(fmt.Sprint(s.nextID)),
		Rating:  req.Rating,
		Comment: req.Comment,
	})
}
