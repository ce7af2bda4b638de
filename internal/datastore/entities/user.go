package entities

import "time"

// User is an account that can own campaigns and annotate files.
type User struct {
	ID             uint            `gorm:"primaryKey"`
	Username       string          `gorm:"size:150;not null;uniqueIndex"`
	Email          string          `gorm:"size:254"`
	FirstName      string          `gorm:"size:150"`
	LastName       string          `gorm:"size:150"`
	PasswordHash   string          `gorm:"size:100;not null"`
	IsStaff        bool            `gorm:"not null;default:false"`
	IsSuperuser    bool            `gorm:"not null;default:false"`
	ExpertiseLevel *ExpertiseLevel `gorm:"type:varchar(10)"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user bypasses campaign ownership checks.
func (u *User) IsAdmin() bool {
	return u != nil && (u.IsStaff || u.IsSuperuser)
}

// Expertise returns the expertise level or an empty string.
func (u *User) Expertise() string {
	if u == nil || u.ExpertiseLevel == nil {
		return ""
	}
	return string(*u.ExpertiseLevel)
}
