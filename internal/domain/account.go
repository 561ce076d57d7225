package domain

import "time"

type Account struct {
	ID            string    `json:"id" bson:"_id" gorm:"type:uuid;primary_key"`
	Username      string    `json:"username" bson:"username" gorm:"uniqueIndex;not null"`
	Email         string    `json:"email" bson:"email" gorm:"uniqueIndex;not null"`
	FullName      string    `json:"fullName" bson:"fullName" gorm:"not null"`
	PasswordHash  string    `json:"-" bson:"passwordHash" gorm:"not null"`
	AvatarURL     string    `json:"avatarUrl" bson:"avatarUrl" gorm:"not null"`
	CoverImageURL string    `json:"coverImageUrl" bson:"coverImageUrl" gorm:"not null;default:''"`
	RefreshToken  string    `json:"-" bson:"refreshToken" gorm:"not null;default:''"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Sanitized returns a copy safe to hand to callers: the password hash and the
// stored refresh token are cleared.
func (a *Account) Sanitized() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.PasswordHash = ""
	c.RefreshToken = ""
	return &c
}

// AccountPatch lists the mutable profile fields. Nil fields are left untouched.
type AccountPatch struct {
	FullName      *string
	Email         *string
	AvatarURL     *string
	CoverImageURL *string
	PasswordHash  *string
}

func (p AccountPatch) IsEmpty() bool {
	return p.FullName == nil && p.Email == nil && p.AvatarURL == nil &&
		p.CoverImageURL == nil && p.PasswordHash == nil
}
