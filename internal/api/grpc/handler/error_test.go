package handler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/model"
)

func TestHandleError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       error
		wantCode codes.Code
		wantMsg  string
	}{
		{
			name:     "api error passthrough",
			in:       apierror.NewErrSystemImmutable("role", "admin"),
			wantCode: codes.FailedPrecondition,
			wantMsg:  apierror.NewErrSystemImmutable("role", "admin").Message,
		},
		{
			name:     "wrapped api error",
			in:       fmt.Errorf("outer: %w", apierror.NewErrInvalidToken()),
			wantCode: codes.Unauthenticated,
			wantMsg:  "invalid token",
		},
		{
			name:     "model not found -> NotFound",
			in:       fmt.Errorf("lookup: %w", model.ErrNotFound),
			wantCode: codes.NotFound,
			wantMsg:  "not found",
		},
		{
			name:     "other -> Internal",
			in:       errors.New("boom"),
			wantCode: codes.Internal,
			wantMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := handleError(tt.in)
			st, ok := status.FromError(err)
			assert.True(t, ok)
			assert.Equal(t, tt.wantCode, st.Code())
			assert.Equal(t, tt.wantMsg, st.Message())
		})
	}
}
