package discovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/romato/romato/internal/models"
)

// ErrUnrecognizedPayload is returned for listing responses that are neither
// an array nor an object carrying results.
var ErrUnrecognizedPayload = errors.New("unrecognized listing payload")

// PaginationKind tags which paging information a listing response carried.
type PaginationKind int

const (
	// PaginationInferred means the server sent no paging fields.
	PaginationInferred PaginationKind = iota
	PaginationObject
	PaginationTotalPages
	PaginationCount
)

func (k PaginationKind) String() string {
	switch k {
	case PaginationObject:
		return "object"
	case PaginationTotalPages:
		return "total_pages"
	case PaginationCount:
		return "count"
	default:
		return "inferred"
	}
}

// PaginationInfo is the canonical paging record every shape decodes into.
type PaginationInfo struct {
	Kind       PaginationKind
	Page       int
	PageSize   int
	TotalPages int
	TotalItems *int
}

// Listing is one decoded page of restaurants.
type Listing struct {
	Items      []models.RestaurantSummary
	Pagination PaginationInfo
}

type paginationObject struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	PageSize    int  `json:"pageSize"`
	TotalCount  *int `json:"totalCount"`
}

type listingEnvelope struct {
	Results    *[]models.RestaurantSummary `json:"results"`
	Pagination *paginationObject           `json:"pagination"`
	TotalPages *int                        `json:"totalPages"`
	Count      *int                        `json:"count"`
}

// DecodeListing decodes a listing response for the requested page. The
// paging fields are taken from, in order of preference, a pagination
// object, a totalPages field, or a count. Without any of them a full page
// is taken to mean there is one more page.
func DecodeListing(raw []byte, page, pageSize int) (*Listing, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUnrecognizedPayload)
	}

	switch raw[0] {
	case '[':
		var items []models.RestaurantSummary
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnrecognizedPayload, err)
		}
		return &Listing{Items: items, Pagination: inferred(len(items), page, pageSize)}, nil
	case '{':
	default:
		return nil, ErrUnrecognizedPayload
	}

	var env listingEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnrecognizedPayload, err)
	}
	if env.Results == nil {
		return nil, fmt.Errorf("%w: missing results", ErrUnrecognizedPayload)
	}
	items := *env.Results

	var info PaginationInfo
	switch {
	case env.Pagination != nil:
		p := env.Pagination
		info = PaginationInfo{
			Kind:       PaginationObject,
			Page:       orDefault(p.CurrentPage, page),
			PageSize:   orDefault(p.PageSize, pageSize),
			TotalPages: p.TotalPages,
			TotalItems: p.TotalCount,
		}
	case env.TotalPages != nil:
		info = PaginationInfo{
			Kind:       PaginationTotalPages,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: *env.TotalPages,
		}
	case env.Count != nil:
		count := *env.Count
		info = PaginationInfo{
			Kind:       PaginationCount,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: pagesFor(count, pageSize),
			TotalItems: &count,
		}
	default:
		info = inferred(len(items), page, pageSize)
	}

	// page must stay within [1, TotalPages].
	info.Page = max(info.Page, 1)
	info.TotalPages = max(info.TotalPages, info.Page, 1)

	return &Listing{Items: items, Pagination: info}, nil
}

func inferred(n, page, pageSize int) PaginationInfo {
	page = max(page, 1)
	total := page
	if pageSize > 0 && n >= pageSize {
		total = page + 1
	}
	return PaginationInfo{
		Kind:       PaginationInferred,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: total,
	}
}

func pagesFor(count, pageSize int) int {
	if pageSize <= 0 || count <= 0 {
		return 1
	}
	return (count + pageSize - 1) / pageSize
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
