package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		total         int
		req           PageRequest
		wantPage      int
		wantLimit     int
		wantTotalPage int
	}{
		{name: "defaults", total: 0, req: PageRequest{}, wantPage: 1, wantLimit: 10, wantTotalPage: 0},
		{name: "exact division", total: 20, req: PageRequest{Page: 2, Limit: 10}, wantPage: 2, wantLimit: 10, wantTotalPage: 2},
		{name: "rounds up", total: 21, req: PageRequest{Page: 1, Limit: 10}, wantPage: 1, wantLimit: 10, wantTotalPage: 3},
		{name: "limit clamped", total: 250, req: PageRequest{Page: 1, Limit: 1000}, wantPage: 1, wantLimit: 100, wantTotalPage: 3},
		{name: "single item", total: 1, req: PageRequest{Page: 1, Limit: 7}, wantPage: 1, wantLimit: 7, wantTotalPage: 1},
		{name: "huge page clamped", total: 5, req: PageRequest{Page: math.MaxInt, Limit: 100}, wantPage: MaxPage, wantLimit: 100, wantTotalPage: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewPage[int](nil, tt.total, tt.req)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantTotalPage, p.TotalPages)
			assert.NotNil(t, p.Data)
		})
	}
}

func TestPageRequest_Offset(t *testing.T) {
	assert.Equal(t, 0, PageRequest{Page: 1, Limit: 10}.Offset())
	assert.Equal(t, 20, PageRequest{Page: 3, Limit: 10}.Offset())

	huge := PageRequest{Page: 1e17, Limit: MaxLimit}.Normalize()
	assert.Positive(t, huge.Offset())
}

func TestConflictError_Is(t *testing.T) {
	var err error = &ConflictError{Entity: "user", Field: "email"}
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "user with this email already exists", err.Error())
}

func TestUser_Sanitized(t *testing.T) {
	u := User{Email: "a@b.c", PasswordHash: "hash", PasswordResetToken: "tok"}
	s := u.Sanitized()
	assert.Empty(t, s.PasswordHash)
	assert.Empty(t, s.PasswordResetToken)
	assert.Equal(t, "a@b.c", s.Email)
	assert.Equal(t, "hash", u.PasswordHash)
}
