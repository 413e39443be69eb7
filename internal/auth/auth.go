// Package auth guards the auctioneer routes. Bidders are never authenticated.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Method is an authentication scheme.
type Method string

const (
	// MethodNone disables the auctioneer guard.
	MethodNone Method = "none"
	// MethodAPIKey checks the X-API-Key header.
	MethodAPIKey Method = "apikey"
	// MethodBasic checks HTTP Basic credentials against bcrypt hashes.
	MethodBasic Method = "basic"
)

// Auctioneer is the identity that passed the guard.
type Auctioneer struct {
	Name   string
	Method Method
}

// Authenticator validates a request and returns the caller.
type Authenticator interface {
	Authenticate(r *http.Request) (*Auctioneer, error)
	Method() Method
}

// Sentinel errors for authentication failures.
var (
	ErrUnauthenticated    = errors.New("unauthenticated: no credentials provided")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownMethod      = errors.New("unknown auth method")
)

// New builds the authenticator for method. MethodNone yields a nil
// Authenticator and no error.
func New(method Method, apiKeys, basicUsers string) (Authenticator, error) {
	switch method {
	case MethodNone, "":
		return nil, nil
	case MethodAPIKey:
		a, err := NewAPIKeyAuthenticator(apiKeys)
		if err != nil {
			return nil, err
		}
		return a, nil
	case MethodBasic:
		a, err := NewBasicAuthenticator(basicUsers)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// parseCredentials splits "left:right,left:right" lists. Only the first
// colon of an entry separates the halves.
func parseCredentials(scheme, config string) (map[string]string, error) {
	trimmed := strings.TrimSpace(config)
	if trimmed == "" {
		return nil, fmt.Errorf("%s auth: credentials must not be empty", scheme)
	}

	entries := make(map[string]string)
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		left, right, found := strings.Cut(entry, ":")
		if !found {
			return nil, fmt.Errorf("%s auth: entry %q is missing a colon", scheme, entry)
		}
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if left == "" || right == "" {
			return nil, fmt.Errorf("%s auth: entry halves must not be empty", scheme)
		}

		entries[left] = right
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%s auth: no valid entries found", scheme)
	}

	return entries, nil
}

type contextKey string

const auctioneerKey contextKey = "auctioneer"

// FromContext retrieves the authenticated auctioneer from ctx.
func FromContext(ctx context.Context) (*Auctioneer, bool) {
	who, ok := ctx.Value(auctioneerKey).(*Auctioneer)
	return who, ok
}

// WithAuctioneer stores the authenticated auctioneer in ctx.
func WithAuctioneer(ctx context.Context, who *Auctioneer) context.Context {
	return context.WithValue(ctx, auctioneerKey, who)
}
