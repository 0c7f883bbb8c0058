// Package apierror defines the business errors returned by the services.
// Every error carries the gRPC code the transport should answer with.
package apierror

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
)

// Kind classifies a business rule violation.
type Kind string

const (
	KindNotFound              Kind = "NOT_FOUND"
	KindDuplicateKey          Kind = "DUPLICATE_KEY"
	KindDuplicateName         Kind = "DUPLICATE_NAME"
	KindDuplicateEmail        Kind = "DUPLICATE_EMAIL"
	KindDuplicateUsername     Kind = "DUPLICATE_USERNAME"
	KindSystemImmutable       Kind = "SYSTEM_IMMUTABLE"
	KindInUse                 Kind = "IN_USE"
	KindDanglingReference     Kind = "DANGLING_REFERENCE"
	KindPasswordRequired      Kind = "PASSWORD_REQUIRED"
	KindInvalidOrExpiredToken Kind = "INVALID_OR_EXPIRED_TOKEN"
	KindInvalidToken          Kind = "INVALID_TOKEN"
	KindUnauthenticated       Kind = "UNAUTHENTICATED"
	KindUnauthorized          Kind = "UNAUTHORIZED"
	KindInvalidArgument       Kind = "INVALID_ARGUMENT"
)

// APIError is a recoverable business error.
type APIError struct {
	Kind     Kind
	GRPCCode codes.Code
	Message  string
	Details  map[string]any
}

func (e *APIError) Error() string {
	return e.Message
}

// IsKind reports whether err wraps an *APIError of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

func newError(kind Kind, code codes.Code, details map[string]any, format string, args ...any) *APIError {
	return &APIError{
		Kind:     kind,
		GRPCCode: code,
		Message:  fmt.Sprintf(format, args...),
		Details:  details,
	}
}

func NewErrNotFound(entity, field, value string) *APIError {
	return newError(KindNotFound, codes.NotFound,
		map[string]any{"entity": entity, field: value},
		"%s with %s %q not found", entity, field, value)
}

func NewErrDuplicateKey(key string) *APIError {
	return newError(KindDuplicateKey, codes.AlreadyExists,
		map[string]any{"key": key}, "permission with key %q already exists", key)
}

func NewErrDuplicateName(name string) *APIError {
	return newError(KindDuplicateName, codes.AlreadyExists,
		map[string]any{"name": name}, "role with name %q already exists", name)
}

func NewErrDuplicateEmail(email string) *APIError {
	return newError(KindDuplicateEmail, codes.AlreadyExists,
		map[string]any{"email": email}, "email %q is already in use", email)
}

func NewErrDuplicateUsername(username string) *APIError {
	return newError(KindDuplicateUsername, codes.AlreadyExists,
		map[string]any{"username": username}, "username %q is already in use", username)
}

func NewErrSystemImmutable(entity, id string) *APIError {
	return newError(KindSystemImmutable, codes.FailedPrecondition,
		map[string]any{"entity": entity, "id": id},
		"system %s %s cannot be modified or deleted", entity, id)
}

// NewErrInUse reports that count referrers still point at the entity.
func NewErrInUse(entity string, count int, referrer string) *APIError {
	return newError(KindInUse, codes.FailedPrecondition,
		map[string]any{"entity": entity, "count": count, "referrer": referrer},
		"%s is in use by %d %s(s)", entity, count, referrer)
}

func NewErrDanglingReference(entity string, ids []string) *APIError {
	return newError(KindDanglingReference, codes.InvalidArgument,
		map[string]any{"entity": entity, "ids": ids},
		"unknown %s ids: %s", entity, strings.Join(ids, ", "))
}

func NewErrPasswordRequired() *APIError {
	return newError(KindPasswordRequired, codes.InvalidArgument, nil,
		"password is required for local authentication")
}

func NewErrInvalidOrExpiredToken() *APIError {
	return newError(KindInvalidOrExpiredToken, codes.InvalidArgument, nil,
		"password reset token is invalid or expired")
}

func NewErrInvalidToken() *APIError {
	return newError(KindInvalidToken, codes.Unauthenticated, nil, "invalid token")
}

func NewErrUnauthenticated(reason string) *APIError {
	return newError(KindUnauthenticated, codes.Unauthenticated, nil, "%s", reason)
}

func NewErrUnauthorized(reason string) *APIError {
	return newError(KindUnauthorized, codes.PermissionDenied, nil, "%s", reason)
}

func NewErrInvalidArgument(format string, args ...any) *APIError {
	return newError(KindInvalidArgument, codes.InvalidArgument, nil, format, args...)
}
