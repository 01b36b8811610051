package security

// Authorizer is an allowlist of chat user IDs. An empty list admits everyone.
type Authorizer struct {
	ids map[int64]struct{}
}

func NewAuthorizer(allowedIDs []int64) *Authorizer {
	a := &Authorizer{ids: make(map[int64]struct{}, len(allowedIDs))}
	for _, id := range allowedIDs {
		a.ids[id] = struct{}{}
	}
	return a
}

// Restricted reports whether an allowlist is in force.
func (a *Authorizer) Restricted() bool {
	return a != nil && len(a.ids) > 0
}

// IsAllowed reports whether userID may talk to the bot. A nil Authorizer allows all.
func (a *Authorizer) IsAllowed(userID int64) bool {
	if !a.Restricted() {
		return true
	}
	_, ok := a.ids[userID]
	return ok
}
