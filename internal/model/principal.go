package model

import "github.com/google/uuid"

type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
)

// Principal is the authenticated caller extracted from the access token.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) IsModerator() bool {
	return p.Role == RoleModerator
}
