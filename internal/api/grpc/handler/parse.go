package handler

import (
	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/apierror"
)

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apierror.NewErrInvalidArgument("invalid %s %q", field, value)
	}
	return id, nil
}

func parseIDs(field string, values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := parseID(field, v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseOptionalID(field string, value *string) (*uuid.UUID, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	id, err := parseID(field, *value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
