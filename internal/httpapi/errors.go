package httpapi

import (
	"errors"
	"net/http"

	"catalyst.org/internal/identity"
	"catalyst.org/internal/invites"
	"catalyst.org/internal/keys"
	"catalyst.org/internal/registry"
	"catalyst.org/internal/relation"
	"catalyst.org/internal/sharing"
	"catalyst.org/internal/token"
)

// handleDomainError maps service errors to HTTP statuses. Registry
// authorization failures keep their exact message; backend unavailability is
// a retryable 503, never a denial.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrAuthenticationFailed):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, sharing.ErrCallerTokenRequired),
		errors.Is(err, identity.ErrInvalidCredential):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, registry.ErrUnauthorizedService),
		errors.Is(err, token.ErrNotAuthorized),
		errors.Is(err, sharing.ErrNotCustodian),
		errors.Is(err, sharing.ErrNotChannelOwner),
		errors.Is(err, sharing.ErrReadDenied),
		errors.Is(err, invites.ErrNotReceiver):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, sharing.ErrChannelNotFound),
		errors.Is(err, invites.ErrNotFound),
		errors.Is(err, keys.ErrVersionNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, sharing.ErrPartnershipRequired),
		errors.Is(err, invites.ErrDuplicatePending),
		errors.Is(err, invites.ErrAlreadyResolved):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, relation.ErrBackendUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, token.ErrChannelRequired),
		errors.Is(err, token.ErrDurationExceedsMaximum),
		errors.Is(err, token.ErrChannelTooLong),
		errors.Is(err, token.ErrTooManyChannels),
		errors.Is(err, token.ErrEntityRequired),
		errors.Is(err, token.ErrAudienceRequired),
		errors.Is(err, registry.ErrInvalidEntry),
		errors.Is(err, invites.ErrInvalidInvite),
		errors.Is(err, invites.ErrInvalidStatus),
		errors.Is(err, sharing.ErrPartnerRequired),
		errors.Is(err, relation.ErrInvalidRelationship),
		errors.Is(err, identity.ErrNoOrganization):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
