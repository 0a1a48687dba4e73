package middleware

import (
	"context"
	"net/http"
	"strconv"

	"roomly/pkg/model"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
	HeaderAdmin    = "X-User-Admin"
)

const identityKey contextKey = "identity"

// Identity lifts the caller identity asserted by the upstream auth gateway
// into the request context. Requests without the headers proceed as
// anonymous; each handler decides whether anonymous access is acceptable.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := model.Identity{
				UserID:   r.Header.Get(HeaderUserID),
				UserName: r.Header.Get(HeaderUserName),
			}
			if admin, err := strconv.ParseBool(r.Header.Get(HeaderAdmin)); err == nil {
				id.Admin = admin
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom returns the caller identity; the zero Identity means
// anonymous.
func IdentityFrom(ctx context.Context) model.Identity {
	if id, ok := ctx.Value(identityKey).(model.Identity); ok {
		return id
	}
	return model.Identity{}
}
