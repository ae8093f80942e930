package guard

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/romato/romato/internal/models"
	"github.com/romato/romato/internal/session"
)

// Kind selects the guard a rule applies.
type Kind int

const (
	Open Kind = iota
	ProtectedKind
	PublicKind
)

// Rule guards every path under Prefix. Roles, when set, restricts a
// protected route to those roles.
type Rule struct {
	Prefix string
	Kind   Kind
	Roles  []models.Role
}

// DefaultRules is the route table of the client.
func DefaultRules() []Rule {
	return []Rule{
		{Prefix: LoginRoute, Kind: PublicKind},
		{Prefix: SignupRoute, Kind: PublicKind},
		{Prefix: "/partner/signup", Kind: PublicKind},
		{Prefix: AdminRoute, Kind: ProtectedKind, Roles: []models.Role{models.RoleAdmin}},
		{Prefix: "/partner", Kind: ProtectedKind, Roles: []models.Role{models.RoleRestaurantManager}},
		{Prefix: "/my-bookings", Kind: ProtectedKind, Roles: []models.Role{models.RoleCustomer}},
		{Prefix: "/book-restaurant", Kind: ProtectedKind, Roles: []models.Role{models.RoleCustomer}},
		{Prefix: "/reviews", Kind: ProtectedKind, Roles: []models.Role{models.RoleCustomer}},
		{Prefix: "/profile", Kind: ProtectedKind},
		{Prefix: "/restaurants", Kind: Open},
		{Prefix: HomeRoute, Kind: Open},
	}
}

// Router resolves paths against a rule table, longest prefix first.
type Router struct {
	rules []Rule
}

func NewRouter(rules []Rule) *Router {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b Rule) int {
		return len(b.Prefix) - len(a.Prefix)
	})
	return &Router{rules: sorted}
}

func (r *Router) match(path string) (Rule, bool) {
	for _, rule := range r.rules {
		if rule.Prefix == HomeRoute || path == rule.Prefix || strings.HasPrefix(path, rule.Prefix+"/") {
			return rule, true
		}
	}
	return Rule{}, false
}

// Resolve evaluates path for the session snapshot st. Unmatched paths render.
func (r *Router) Resolve(path string, st session.State) Decision {
	rule, ok := r.match(path)
	if !ok {
		return Decision{Action: Render}
	}

	status := StatusOf(st)
	switch rule.Kind {
	case PublicKind:
		return Public(status, st.Role())
	case ProtectedKind:
		d := Protected(status)
		if d.Action == Render && len(rule.Roles) > 0 && !slices.Contains(rule.Roles, st.Role()) {
			return Decision{Action: Redirect, Target: LandingFor(st.Role())}
		}
		return d
	default:
		return Decision{Action: Render}
	}
}

// Sessions is the part of the session manager the router observes.
type Sessions interface {
	State() session.State
	Wait(ctx context.Context) (session.State, error)
	Subscribe(fn func(session.State)) func()
}

// Enforce blocks until the session settles and returns the decision for
// path. It only fails when ctx ends first.
func (r *Router) Enforce(ctx context.Context, s Sessions, path string) (Decision, error) {
	st, err := s.Wait(ctx)
	if err != nil {
		return Decision{Action: Wait}, err
	}
	return r.Resolve(path, st), nil
}

// Watch calls fn with the decision for path now and again whenever it
// changes. The returned function stops watching.
func (r *Router) Watch(s Sessions, path string, fn func(Decision)) func() {
	var mu sync.Mutex
	var last *Decision
	evaluate := func(st session.State) {
		mu.Lock()
		defer mu.Unlock()
		d := r.Resolve(path, st)
		if last != nil && *last == d {
			return
		}
		last = &d
		fn(d)
	}

	cancel := s.Subscribe(evaluate)
	evaluate(s.State())
	return cancel
}
