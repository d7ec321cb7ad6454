package models

// Session is the authenticated caller context, resolved from a bearer token
// by the API layer and passed explicitly into every operation that needs a
// user. There is no ambient global user state.
type Session struct {
	Token  string
	UserID string
}

// Authenticated reports whether the session carries a resolved user
func (s Session) Authenticated() bool {
	return s.UserID != ""
}
