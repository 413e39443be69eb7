package auth

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader is the HTTP header carrying the auctioneer API key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuthenticator accepts requests whose X-API-Key header matches one
// of the configured keys.
type APIKeyAuthenticator struct {
	keys map[string]string // key -> auctioneer name
}

// NewAPIKeyAuthenticator parses keys in the form "key1:name1,key2:name2".
func NewAPIKeyAuthenticator(keysConfig string) (*APIKeyAuthenticator, error) {
	keys, err := parseCredentials("apikey", keysConfig)
	if err != nil {
		return nil, err
	}
	return &APIKeyAuthenticator{keys: keys}, nil
}

// Authenticate compares the presented key against every configured key in
// constant time.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*Auctioneer, error) {
	presented := r.Header.Get(APIKeyHeader)
	if presented == "" {
		return nil, ErrUnauthenticated
	}

	var matched string
	for key, name := range a.keys {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
			matched = name
		}
	}
	if matched == "" {
		return nil, ErrInvalidAPIKey
	}

	return &Auctioneer{Name: matched, Method: MethodAPIKey}, nil
}

// Method returns MethodAPIKey.
func (a *APIKeyAuthenticator) Method() Method {
	return MethodAPIKey
}
