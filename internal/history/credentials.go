package history

import "net/http"

// Credentials carries the authentication material presented to the backend.
// Callers supply them explicitly at construction; the client never reads
// tokens from ambient process state.
type Credentials struct {
	// Token is sent as a bearer token when non-empty.
	Token string
}

// IsZero reports whether no credentials were provided.
func (c Credentials) IsZero() bool {
	return c.Token == ""
}

func (c Credentials) apply(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}
