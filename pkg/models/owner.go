package models

// Owner identifies who a catalog row belongs to. A row is either global
// (builtin, visible to everyone) or scoped to a single user. Modeled as a
// tagged type rather than a raw nullable string so call sites cannot forget
// the distinction.
type Owner struct {
	userID *string
}

// GlobalOwner returns the owner value for builtin/global rows.
func GlobalOwner() Owner {
	return Owner{}
}

// UserOwner returns the owner value for a row scoped to the given user.
func UserOwner(userID string) Owner {
	return Owner{userID: &userID}
}

// OwnerFromPtr converts a scanned nullable column into an Owner.
func OwnerFromPtr(userID *string) Owner {
	if userID == nil {
		return Owner{}
	}
	return UserOwner(*userID)
}

// IsGlobal reports whether the owner is the global/builtin sentinel.
func (o Owner) IsGlobal() bool {
	return o.userID == nil
}

// UserID returns the owning user id, or false for global rows.
func (o Owner) UserID() (string, bool) {
	if o.userID == nil {
		return "", false
	}
	return *o.userID, true
}

// Ptr returns the nullable representation used for database parameters.
// The pointer is a copy; callers cannot mutate the owner through it.
func (o Owner) Ptr() *string {
	if o.userID == nil {
		return nil
	}
	userID := *o.userID
	return &userID
}

func (o Owner) String() string {
	if o.userID == nil {
		return "global"
	}
	return *o.userID
}
