package model

// Identity is the caller as asserted by the upstream gateway. Authentication
// itself happens outside this service; we only consume the result.
type Identity struct {
	UserID   string
	UserName string
	Admin    bool
}

func (i Identity) Anonymous() bool {
	return i.UserID == ""
}
