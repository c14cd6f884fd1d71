package models

import "time"

// User is a person allowed to use Partline. Users are never deleted;
// deactivation clears Active.
type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"size:100;not null"`
	Email        string `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string `gorm:"size:255;not null"`
	Role         Role   `gorm:"size:16;not null;default:OPERATOR"`
	Active       bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
}

// Actor is an authenticated, role-resolved caller.
type Actor struct {
	UserID uint
	Role   Role
}

// HasRole reports whether the actor holds one of roles.
func (a *Actor) HasRole(roles ...Role) bool {
	if a == nil {
		return false
	}
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
