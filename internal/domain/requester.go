package domain

// Requester is the authenticated caller of an operation. It is passed explicitly into every
// core operation.
type Requester struct {
	UserID  string
	IsAdmin bool
}

// CanView reports whether the requester may read an order owned by ownerID.
func (r Requester) CanView(ownerID string) bool {
	return r.IsAdmin || r.UserID == ownerID
}
