package discovery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/romato/romato/internal/client"
)

const (
	DefaultLocation  = "San Francisco"
	DefaultTime      = "19:00"
	DefaultPartySize = 1
	DefaultPageSize  = 12
)

var ErrInvalidPartySize = errors.New("party size must be a positive number")

// SearchCriteria is the current discovery intent. Time is always held in
// 24-hour "HH:MM" form.
type SearchCriteria struct {
	Location  string
	Date      time.Time
	Time      string
	PartySize int
	Query     string
}

// DefaultCriteria returns the criteria a fresh engine starts with.
func DefaultCriteria() SearchCriteria {
	return SearchCriteria{
		Location:  DefaultLocation,
		Time:      DefaultTime,
		PartySize: DefaultPartySize,
	}
}

// DateString is the ISO calendar date, or "" when no date is set.
func (c SearchCriteria) DateString() string {
	if c.Date.IsZero() {
		return ""
	}
	return c.Date.Format(DateLayout)
}

func (c SearchCriteria) query(page, pageSize int) *client.Query {
	return client.NewQuery().
		Set("city", c.Location).
		Set("date", c.DateString()).
		Set("time", c.Time).
		SetInt("people", c.PartySize).
		SetInt("page", page).
		SetInt("pageSize", pageSize).
		SetNonEmpty("query", strings.TrimSpace(c.Query))
}

func (c SearchCriteria) normalized() (SearchCriteria, error) {
	t, err := NormalizeTime(c.Time)
	if err != nil {
		return c, err
	}
	if c.PartySize < 1 {
		return c, fmt.Errorf("%w: %d", ErrInvalidPartySize, c.PartySize)
	}
	c.Time = t
	c.Location = strings.TrimSpace(c.Location)
	return c, nil
}

// CriteriaPatch is a partial update. Nil fields are left alone; a non-nil
// Date pointing at the zero time clears the date.
type CriteriaPatch struct {
	Location  *string
	Date      *time.Time
	Time      *string
	PartySize *int
	Query     *string
}

func (p CriteriaPatch) apply(c SearchCriteria) SearchCriteria {
	if p.Location != nil {
		c.Location = *p.Location
	}
	if p.Date != nil {
		c.Date = *p.Date
	}
	if p.Time != nil {
		c.Time = *p.Time
	}
	if p.PartySize != nil {
		c.PartySize = *p.PartySize
	}
	if p.Query != nil {
		c.Query = *p.Query
	}
	return c
}
