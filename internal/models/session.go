package models

import (
	"errors"
	"strings"
)

// ErrUnknownRole is returned when a role string does not match a known role.
var ErrUnknownRole = errors.New("unknown role")

// Role is the account type the API assigns to a user.
type Role string

const (
	RoleAnonymous         Role = ""
	RoleCustomer          Role = "Customer"
	RoleRestaurantManager Role = "RestaurantManager"
	RoleAdmin             Role = "Admin"
)

// ParseRole matches s against the known roles, ignoring case.
func ParseRole(s string) (Role, error) {
	for _, r := range []Role{RoleCustomer, RoleRestaurantManager, RoleAdmin} {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return RoleAnonymous, ErrUnknownRole
}

func (r Role) String() string {
	if r == RoleAnonymous {
		return "anonymous"
	}
	return string(r)
}

// User is the identity record returned by the login endpoint.
type User struct {
	ID       FlexID `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Tokens is the credential pair issued on login.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Complete returns true if both the access and refresh tokens are present.
func (t Tokens) Complete() bool {
	return t.Access != "" && t.Refresh != ""
}

// LoginRequest is the body of POST users/login/.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the success body of POST users/login/.
type LoginResponse struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

// RegisterRequest is the body of POST users/register/.
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role" validate:"required,oneof=Customer RestaurantManager Admin"`
	Phone    string `json:"phone,omitempty"`
}

// RefreshRequest is the body of POST token/refresh/.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// RefreshResponse carries the newly issued access token.
type RefreshResponse struct {
	Access string `json:"access"`
}
