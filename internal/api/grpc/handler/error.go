package handler

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/model"
)

func handleError(err error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return status.Error(apiErr.GRPCCode, apiErr.Message)
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}
