package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/fezalogistics/feza/internal/auth"
)

func callerFromRequest(r *http.Request) (auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.UserID) == "" {
		return auth.Identity{}, fmt.Errorf("caller identity is required")
	}
	return identity, nil
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return fmt.Errorf("missing required role %q", role)
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}
