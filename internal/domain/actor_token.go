package domain

import "time"

// ActorToken is an opaque API token identifying the human actor behind
// approvals, rejections and subsidy allocations. Credential validation
// beyond the token lookup is out of scope.
type ActorToken struct {
	ID        int64
	TokenHash string
	ActorID   int64
	SFDID     *string
	Abilities string
	ExpiresAt *time.Time
}
