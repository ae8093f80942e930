package commands

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romato/romato/internal/apitest"
	"github.com/romato/romato/internal/guard"
	"github.com/romato/romato/internal/models"
)

type harness struct {
	globals *Globals
	srv     *apitest.Server
	out     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	srv := apitest.New(t)
	out := &bytes.Buffer{}
	return &harness{
		globals: &Globals{
			APIURL:     srv.URL,
			SessionDir: t.TempDir(),
			Out:        out,
			In:         strings.NewReader(""),
		},
		srv: srv,
		out: out,
	}
}

func (h *harness) login(t *testing.T, username string, role models.Role) {
	t.Helper()
	h.srv.AddUser(username, "s3cret", role)
	require.NoError(t, (&LoginCmd{Username: username, Password: "s3cret"}).Run(context.Background(), h.globals))
	h.out.Reset()
}

func TestLoginCmd_Run(t *testing.T) {
	h := newHarness(t)
	h.srv.AddUser("alice", "s3cret", models.RoleCustomer)

	cmd := &LoginCmd{Username: "alice", Password: "s3cret"}
	require.NoError(t, cmd.Run(context.Background(), h.globals))

	assert.Contains(t, h.out.String(), "Logged in as alice (Customer)")
	assert.Contains(t, h.out.String(), "Continue at /")

	_, err := os.Stat(filepath.Join(h.globals.SessionDir, "tokens.json"))
	require.NoError(t, err)

	// A second login finds the stored session and stays put.
	h.out.Reset()
	require.NoError(t, cmd.Run(context.Background(), h.globals))
	assert.Contains(t, h.out.String(), "Already logged in as alice, continue at /")
}

func TestLoginCmd_BadPassword(t *testing.T) {
	h := newHarness(t)
	h.srv.AddUser("alice", "s3cret", models.RoleCustomer)

	err := (&LoginCmd{Username: "alice", Password: "wrong"}).Run(context.Background(), h.globals)
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())
}

func TestSignupCmd_Run(t *testing.T) {
	h := newHarness(t)

	cmd := &SignupCmd{Username: "bob", Email: "bob@example.com", Password: "pw", Role: "RestaurantManager"}
	require.NoError(t, cmd.Run(context.Background(), h.globals))

	assert.Contains(t, h.out.String(), "Welcome, bob!")
	assert.Contains(t, h.out.String(), "Continue at "+guard.PartnerDashboardRoute)
}

func TestSignupCmd_Duplicate(t *testing.T) {
	h := newHarness(t)
	h.srv.AddUser("bob", "pw", models.RoleCustomer)

	err := (&SignupCmd{Username: "bob", Email: "other@example.com", Password: "pw", Role: "Customer"}).Run(context.Background(), h.globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestWhoamiCmd(t *testing.T) {
	h := newHarness(t)

	err := (&WhoamiCmd{}).Run(context.Background(), h.globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login required")

	h.login(t, "carol", models.RoleAdmin)
	require.NoError(t, (&WhoamiCmd{}).Run(context.Background(), h.globals))

	out := h.out.String()
	assert.Contains(t, out, "Username:    carol")
	assert.Contains(t, out, "Role:        Admin")
	assert.Contains(t, out, "Fingerprint: ")
	assert.Contains(t, out, "(valid)")
}

func TestLogoutCmd(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", models.RoleCustomer)

	require.NoError(t, (&LogoutCmd{}).Run(context.Background(), h.globals))
	assert.Contains(t, h.out.String(), "Logged out.")

	_, err := os.Stat(filepath.Join(h.globals.SessionDir, "tokens.json"))
	assert.True(t, os.IsNotExist(err))

	err = (&WhoamiCmd{}).Run(context.Background(), h.globals)
	assert.Error(t, err)
}

func TestBrowseCmd(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedRestaurants("San Francisco", "Trattoria", 15)

	require.NoError(t, (&BrowseCmd{Page: 1}).Run(context.Background(), h.globals))

	out := h.out.String()
	assert.Contains(t, out, "Popular restaurants:")
	assert.Contains(t, out, "Trattoria 1")
	assert.Contains(t, out, "Page 1/2, 15 restaurants")
}

func TestSearchCmd(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedRestaurants("Austin", "Taco", 20)

	cmd := &SearchCmd{City: "Austin", Date: "2024-06-01", Time: "7:30 PM", People: 4, Page: 2}
	require.NoError(t, cmd.Run(context.Background(), h.globals))

	reqs := h.srv.RequestsTo("/api/restaurants/search/")
	require.Len(t, reqs, 2)
	assert.Equal(t, "city=Austin&date=2024-06-01&time=19:30&people=4&page=2&pageSize=12", reqs[1].RawQuery)

	out := h.out.String()
	assert.Contains(t, out, "Restaurants in Austin on 2024-06-01 at 19:30 for 4:")
	assert.Contains(t, out, "Page 2/2")
}

func TestSearchCmd_InvalidTime(t *testing.T) {
	h := newHarness(t)

	err := (&SearchCmd{Time: "teatime", People: 1, Page: 1}).Run(context.Background(), h.globals)
	require.Error(t, err)
	assert.Empty(t, h.srv.RequestsTo("/api/restaurants/search/"))
}

func TestExploreCmd(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedRestaurants("Austin", "Taco", 14)
	h.globals.In = strings.NewReader(strings.Join([]string{
		"city Austin",
		"people 4",
		"time 8:00 PM",
		"search",
		"next",
		"next",
		"prev",
		"prev",
		"people zero",
		"bogus",
		"quit",
	}, "\n"))

	require.NoError(t, (&ExploreCmd{}).Run(context.Background(), h.globals))

	out := h.out.String()
	assert.Contains(t, out, "city=Austin date=- time=20:00 people=4 query=-")
	assert.Contains(t, out, "Restaurants in Austin on any date at 20:00 for 4:")
	assert.Contains(t, out, "Page 2/2")
	assert.Contains(t, out, "Already on the last page.")
	assert.Contains(t, out, "Already on the first page.")
	assert.Contains(t, out, `invalid party size "zero"`)
	assert.Contains(t, out, `unknown command "bogus"`)
	assert.Contains(t, out, "Loading...")

	reqs := h.srv.RequestsTo("/api/restaurants/search/")
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[1].RawQuery, "page=2")
	assert.Contains(t, reqs[2].RawQuery, "page=1")
}

func TestShowCmd(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedRestaurants("San Francisco", "Bistro", 1)
	id := string(h.srv.Restaurants()[0].ID)

	require.NoError(t, (&ShowCmd{ID: id, Near: "37.7749,-122.4194"}).Run(context.Background(), h.globals))

	out := h.out.String()
	assert.Contains(t, out, "Bistro 1")
	assert.Contains(t, out, "San Francisco, CA 94000")
	assert.Contains(t, out, "Distance: 0.")

	err := (&ShowCmd{ID: id, Near: "north"}).Run(context.Background(), h.globals)
	assert.Error(t, err)

	err = (&ShowCmd{ID: "999"}).Run(context.Background(), h.globals)
	require.Error(t, err)
	assert.Equal(t, "Restaurant not found", err.Error())
}

func TestBookingFlow(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedRestaurants("San Francisco", "Bistro", 1)
	id := string(h.srv.Restaurants()[0].ID)
	h.srv.SetTimeSlots([]models.TimeSlot{
		{ID: "501", Time: "19:00", Available: true, TableSize: 2},
		{ID: "502", Time: "19:30", Available: false, TableSize: 4},
	})
	h.login(t, "alice", models.RoleCustomer)
	ctx := context.Background()

	require.NoError(t, (&SlotsCmd{ID: id, Date: "2024-06-01", Time: "7:00 PM", People: 2}).Run(ctx, h.globals))
	assert.Contains(t, h.out.String(), "501")
	reqs := h.srv.RequestsTo("/api/restaurants/" + id + "/time-slots/")
	require.Len(t, reqs, 1)
	assert.Equal(t, "date=2024-06-01&time=19:00&people=2", reqs[0].RawQuery)

	h.out.Reset()
	require.NoError(t, (&BookCmd{SlotID: "501", People: 2, Phone: "555-0100", Occasion: "birthday"}).Run(ctx, h.globals))
	assert.Contains(t, h.out.String(), "confirmed for 2")

	err := (&BookCmd{SlotID: "501", People: 2, Phone: "555-0100"}).Run(ctx, h.globals)
	require.Error(t, err)
	assert.Equal(t, "This time slot is no longer available", err.Error())

	h.out.Reset()
	require.NoError(t, (&BookingsCmd{}).Run(ctx, h.globals))
	assert.Contains(t, h.out.String(), "Booked")

	bookings := h.srv.Bookings()
	require.Len(t, bookings, 1)

	h.out.Reset()
	require.NoError(t, (&CancelCmd{ID: string(bookings[0].ID)}).Run(ctx, h.globals))
	assert.Contains(t, h.out.String(), "cancelled")
	assert.Equal(t, "Cancelled", h.srv.Bookings()[0].Status)

	h.out.Reset()
	require.NoError(t, (&ReviewCmd{RestaurantID: id, Rating: 5, Comment: "Lovely"}).Run(ctx, h.globals))
	assert.Contains(t, h.out.String(), "posted")
}

func TestBookCmd_Guards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := (&BookCmd{SlotID: "1", People: 2, Phone: "555"}).Run(ctx, h.globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "romato login")

	h.login(t, "maria", models.RoleRestaurantManager)

	err = (&BookCmd{SlotID: "1", People: 2, Phone: "555"}).Run(ctx, h.globals)
	var redirect *guard.RedirectError
	require.ErrorAs(t, err, &redirect)
	assert.Equal(t, guard.PartnerDashboardRoute, redirect.Target)
	assert.Empty(t, h.srv.RequestsTo("/api/bookings/create-booking/"))
}

func TestPartnerCmds(t *testing.T) {
	h := newHarness(t)
	h.login(t, "maria", models.RoleRestaurantManager)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "front.jpg"), []byte("jpeg"), 0o600))
	file := filepath.Join(dir, "restaurant.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
name: Casa Maria
cuisine_type: Mexican
cost_rating: 2
address: 1 Main St
city: Austin
state: TX
zipcode: "73301"
opening_time: "11:00"
closing_time: "22:00"
days_open: [Monday, Friday]
table_sizes: ["2", "4"]
photos: [front.jpg]
`), 0o600))

	require.NoError(t, (&PartnerCreateCmd{File: file}).Run(ctx, h.globals))
	assert.Contains(t, h.out.String(), "Submitted Casa Maria for approval")

	restaurants := h.srv.Restaurants()
	require.Len(t, restaurants, 1)
	assert.Equal(t, []string{"Monday", "Friday"}, restaurants[0].DaysOpen)
	assert.Equal(t, []string{"https://img.example.com/uploads/front.jpg"}, restaurants[0].Photos)
	id := string(restaurants[0].ID)

	h.out.Reset()
	require.NoError(t, (&PartnerRestaurantsCmd{}).Run(ctx, h.globals))
	assert.Contains(t, h.out.String(), "Casa Maria")
	assert.Contains(t, h.out.String(), "pending")

	h.out.Reset()
	require.NoError(t, (&PartnerUpdateCmd{ID: id, File: file}).Run(ctx, h.globals))
	assert.Contains(t, h.out.String(), "Updated restaurant "+id)

	h.out.Reset()
	require.NoError(t, (&PartnerSlotsCmd{RestaurantID: id, From: "2024-06-01", To: "2024-06-30", TableSizes: []int{2, 4}}).Run(ctx, h.globals))
	assert.Contains(t, h.out.String(), "Created slots")

	err := (&PartnerSlotsCmd{RestaurantID: id, From: "2024-06-30", To: "2024-06-01", TableSizes: []int{2}}).Run(ctx, h.globals)
	assert.Error(t, err)
}

func TestLoadRestaurantForm_UnknownField(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: X\nstars: 5\n"), 0o600))

	_, err := loadRestaurantForm(file)
	assert.Error(t, err)
}

func TestAdminCmds(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedRestaurants("Boston", "Chowder", 1)
	pending := h.srv.AddPending("Lobster Shack")
	h.login(t, "root", models.RoleAdmin)
	ctx := context.Background()

	require.NoError(t, (&AdminUnapprovedCmd{}).Run(ctx, h.globals))
	assert.Contains(t, h.out.String(), "Lobster Shack")
	assert.NotContains(t, h.out.String(), "Chowder 1")

	h.out.Reset()
	require.NoError(t, (&AdminDashboardCmd{}).Run(ctx, h.globals))
	assert.Contains(t, h.out.String(), "Pending restaurants: 1")

	h.out.Reset()
	require.NoError(t, (&AdminApproveCmd{ID: pending}).Run(ctx, h.globals))
	assert.Contains(t, h.out.String(), "Approved restaurant "+pending)

	h.out.Reset()
	require.NoError(t, (&AdminApprovedCmd{}).Run(ctx, h.globals))
	assert.Contains(t, h.out.String(), "Lobster Shack")

	h.out.Reset()
	require.NoError(t, (&AdminRemoveCmd{ID: pending}).Run(ctx, h.globals))
	assert.Len(t, h.srv.Restaurants(), 1)
}

func TestAdminCmds_ForbiddenForCustomers(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", models.RoleCustomer)

	err := (&AdminDashboardCmd{}).Run(context.Background(), h.globals)
	var redirect *guard.RedirectError
	require.ErrorAs(t, err, &redirect)
	assert.Equal(t, guard.HomeRoute, redirect.Target)
}

func TestAuthorized_RefreshesOnRejectedToken(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", models.RoleCustomer)
	h.srv.Reset()

	h.srv.Fail(http.MethodGet, "/api/bookings/my-bookings/", http.StatusUnauthorized, `{"detail":"Token expired"}`, 1)

	require.NoError(t, (&BookingsCmd{}).Run(context.Background(), h.globals))
	assert.Contains(t, h.out.String(), "No bookings yet.")

	// One refresh while rehydrating, one after the rejection.
	assert.Len(t, h.srv.RequestsTo("/api/token/refresh/"), 2)
	assert.Len(t, h.srv.RequestsTo("/api/bookings/my-bookings/"), 2)
}

func TestAuthorized_FailedRefreshSignsOut(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", models.RoleCustomer)
	ctx := context.Background()

	app, err := h.globals.Open(ctx)
	require.NoError(t, err)
	defer app.Close()
	require.True(t, app.Session.State().Authenticated())

	h.srv.RevokeRefreshTokens()
	h.srv.Fail(http.MethodGet, "/api/bookings/my-bookings/", http.StatusUnauthorized, `{"detail":"Token expired"}`, 1)

	err = app.Authorized(ctx, func(ctx context.Context) error {
		_, err := app.API.MyBookings(ctx)
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session expired")
	assert.False(t, app.Session.State().Authenticated())

	_, err = os.Stat(filepath.Join(h.globals.SessionDir, "tokens.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestOpen_RevokedSessionEndsAnonymous(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", models.RoleCustomer)
	h.srv.RevokeRefreshTokens()

	app, err := h.globals.Open(context.Background())
	require.NoError(t, err)
	defer app.Close()

	st := app.Session.State()
	assert.False(t, st.Authenticated())
	assert.False(t, st.Initializing())
}
