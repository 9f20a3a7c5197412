package identity

// Kind discriminates the two actor partitions. A request resolves to
// exactly one of them; store lookups never mix the two.
type Kind string

const (
	KindUser  Kind = "user"
	KindGuest Kind = "guest"
)

// ActorIdentity is the canonical result of resolving a request. Exactly one
// of UserID / SessionID is set, matching Kind.
type ActorIdentity struct {
	Kind      Kind
	UserID    string
	SessionID string
}

func UserActor(userID string) ActorIdentity {
	return ActorIdentity{Kind: KindUser, UserID: userID}
}

func GuestActor(sessionID string) ActorIdentity {
	return ActorIdentity{Kind: KindGuest, SessionID: sessionID}
}

func (a ActorIdentity) IsUser() bool { return a.Kind == KindUser }

// PartitionKeys returns the nullable (user_id, session_id) pair used as the
// storage partition. A user actor always carries a null session id and vice
// versa, so rows from the two partitions can never match each other even if
// the raw id strings collide.
func (a ActorIdentity) PartitionKeys() (userID, sessionID *string) {
	if a.Kind == KindUser {
		return &a.UserID, nil
	}
	return nil, &a.SessionID
}
