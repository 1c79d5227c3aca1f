package models

import "gorm.io/datatypes"

// Organization groups users and can own articles published under its name.
type Organization struct {
	BaseModel

	Name     string         `gorm:"type:varchar(255);not null" json:"name"`
	Slug     string         `gorm:"type:varchar(128);uniqueIndex" json:"slug"`
	Settings datatypes.JSON `json:"settings"`

	Users []User `gorm:"foreignKey:OrganizationID" json:"users,omitempty"`
}
