package models

// User represents a platform member who can author content and react to it.
type User struct {
	BaseModel

	Username        string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Name            string `gorm:"type:varchar(255)" json:"name"`
	Email           string `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	ProfileImageURL string `gorm:"type:text" json:"profile_image_url"`

	OrganizationID *uint `gorm:"index" json:"organization_id,omitempty"`
}
