package service

import (
	"errors"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// mapStoreErr converts repository failures at the service boundary:
// missing rows become NotFound for the named resource, anything else is a
// store outage surfaced as an upstream failure, never swallowed.
func mapStoreErr(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return apperrors.NewUpstreamError("database", err)
}
