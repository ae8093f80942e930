// Package apitest provides an in-process fake of the restaurant REST API for
// tests. It records every request and supports failure injection.
package apitest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/romato/romato/internal/models"
)

// Shape selects how listing endpoints report pagination.
type Shape int

const (
	// ShapePagination returns {results, pagination:{...}}.
	ShapePagination Shape = iota
	// ShapeTotalPages returns {results, totalPages}.
	ShapeTotalPages
	// ShapeCount returns {results, count}.
	ShapeCount
	// ShapeResultsOnly returns {results}.
	ShapeResultsOnly
	// ShapeArray returns a bare array.
	ShapeArray
)

func (s Shape) String() string {
	switch s {
	case ShapePagination:
		return "pagination"
	case ShapeTotalPages:
		return "total_pages"
	case ShapeCount:
		return "count"
	case ShapeResultsOnly:
		return "results_only"
	case ShapeArray:
		return "array"
	default:
		return "unknown"
	}
}

// Recorded is a request as seen by the fake.
type Recorded struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

type failure struct {
	status int
	body   string
	times  int
}

type account struct {
	password string
	user     models.User
}

// Server is the fake API. Its URL is the base URL, the /api prefix is
// mounted below it.
type Server struct {
	*httptest.Server
	Echo *echo.Echo

	mu          sync.Mutex
	requests    []Recorded
	failures    map[string]*failure
	accounts    map[string]account
	refresh     map[string]string
	restaurants []models.Restaurant
	bookings    []models.Booking
	slots       []models.TimeSlot
	shape       Shape
	secret      []byte
	nextID      int
}

// New starts a fake API that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		Echo:     echo.New(),
		failures: make(map[string]*failure),
		accounts: make(map[string]account),
		refresh:  make(map[string]string),
		secret:   []byte("apitest-signing-key"),
		nextID:   100,
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Use(s.record, s.inject)
	s.routes()

	s.Server = httptest.NewServer(s.Echo)
	t.Cleanup(s.Close)

	return s
}

func (s *Server) routes() {
	api := s.Echo.Group("/api")

	api.POST("/users/login/", s.login)
	api.POST("/users/register/", s.register)
	api.POST("/token/refresh/", s.refreshToken)

	api.GET("/restaurants/hot/", s.hot)
	api.GET("/restaurants/search/", s.search)
	api.GET("/restaurants/my-restaurants/", s.myRestaurants, s.requireRole(models.RoleRestaurantManager))
	api.POST("/restaurants/create/", s.createRestaurant, s.requireRole(models.RoleRestaurantManager))
	api.PUT("/restaurants/update/", s.updateRestaurant, s.requireRole(models.RoleRestaurantManager))
	api.GET("/restaurants/:id/", s.restaurant)
	api.GET("/restaurants/:id/time-slots/", s.timeSlots)

	admin := api.Group("/restaurants/admin", s.requireRole(models.RoleAdmin))
	admin.GET("/unapproved/", s.adminList(false))
	admin.GET("/approved/", s.adminList(true))
	admin.POST("/approve/:id/", s.adminApprove)
	admin.DELETE("/remove/:id/", s.adminRemove)
	admin.GET("/dashboard/", s.adminDashboard)

	api.POST("/bookings/create-booking/", s.createBooking, s.requireRole(models.RoleCustomer))
	api.GET("/bookings/my-bookings/", s.myBookings, s.requireRole(models.RoleCustomer))
	api.POST("/bookings/my-bookings/:id/cancel/", s.cancelBooking, s.requireRole(models.RoleCustomer))
	api.POST("/bookings/slots/recurring/", s.recurringSlots, s.requireRole(models.RoleRestaurantManager))
	api.POST("/bookings/reviews/create/", s.createReview, s.requireRole(models.RoleCustomer))
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		s.mu.Lock()
		s.requests = append(s.requests, Recorded{
			Method:   req.Method,
			Path:     req.URL.Path,
			RawQuery: req.URL.RawQuery,
			Header:   req.Header.Clone(),
			Body:     body,
		})
		s.mu.Unlock()

		return next(c)
	}
}

func (s *Server) inject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Method + " " + c.Request().URL.Path

		s.mu.Lock()
		f, ok := s.failures[key]
		if ok {
			f.times--
			if f.times <= 0 {
				delete(s.failures, key)
			}
		}
		s.mu.Unlock()

		if ok {
			return c.Blob(f.status, echo.MIMEApplicationJSON, []byte(f.body))
		}
		return next(c)
	}
}

// Fail makes the next times requests to method and path answer with status
// and body. path is the full path, including the /api prefix.
func (s *Server) Fail(method, path string, status int, body string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = &failure{status: status, body: body, times: times}
}

// Requests returns every recorded request in arrival order.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

// RequestsTo returns the recorded requests whose path is path.
func (s *Server) RequestsTo(path string) []Recorded {
	var out []Recorded
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Reset forgets recorded requests.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// SetShape selects the pagination shape of listing responses.
func (s *Server) SetShape(shape Shape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shape = shape
}

// AddUser registers an account that can log in.
func (s *Server) AddUser(username, password string, role models.Role) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(username, password, username+"@example.com", role)
}

func (s *Server) addUserLocked(username, password, email string, role models.Role) models.User {
	s.nextID++
	u := models.User{
		ID:       models.FlexID(fmt.Sprint(s.nextID)),
		Username: username,
		Email:    email,
		Role:     role,
	}
	s.accounts[username] = account{password: password, user: u}
	return u
}

// RevokeRefreshTokens makes every issued refresh token invalid.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]string)
}

// SeedRestaurants adds n approved restaurants in city, named "<prefix> 1..n".
func (s *Server) SeedRestaurants(city, prefix string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 1; i <= n; i++ {
		s.nextID++
		s.restaurants = append(s.restaurants, models.Restaurant{
			ID:          models.FlexID(fmt.Sprint(s.nextID)),
			Name:        fmt.Sprintf("%s %d", prefix, i),
			CuisineType: "Italian",
			CostRating:  1 + i%4,
			Rating:      models.FlexFloat(3 + float64(i%3)*0.5),
			City:        city,
			State:       "CA",
			Zipcode:     "94000",
			Latitude:    37.77,
			Longitude:   -122.42,
			Photos:      []string{fmt.Sprintf("https://img.example.com/%d.jpg", i)},
			Approved:    true,
		})
	}
}

// AddPending adds a restaurant awaiting approval and returns its id.
func (s *Server) AddPending(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprint(s.nextID)
	s.restaurants = append(s.restaurants, models.Restaurant{ID: models.FlexID(id), Name: name, City: "San Francisco"})
	return id
}

// SetTimeSlots replaces the slots returned by the availability endpoint.
func (s *Server) SetTimeSlots(slots []models.TimeSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = slots
}

// Bookings returns the bookings held by the fake.
func (s *Server) Bookings() []models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Booking(nil), s.bookings...)
}

// Restaurants returns the restaurants held by the fake.
func (s *Server) Restaurants() []models.Restaurant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Restaurant(nil), s.restaurants...)
}

func matches(r models.Restaurant, city, query string) bool {
	if city != "" && !strings.EqualFold(r.City, city) {
		return false
	}
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(r.Name), q) || strings.Contains(strings.ToLower(r.CuisineType), q)
}
