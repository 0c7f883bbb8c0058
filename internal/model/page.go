package model

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (Page-1)*Limit within int for any accepted limit.
	MaxPage = math.MaxInt / MaxLimit
)

// PageRequest selects one page of a listing.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize applies defaults and clamps the page and limit.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset is the number of rows to skip for this page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one slice of a listing plus its totals.
type Page[T any] struct {
	Data       []T
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// NewPage builds a page with TotalPages = ceil(total/limit).
func NewPage[T any](data []T, total int, req PageRequest) Page[T] {
	req = req.Normalize()
	if data == nil {
		data = []T{}
	}
	return Page[T]{
		Data:       data,
		Total:      total,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: (total + req.Limit - 1) / req.Limit,
	}
}
