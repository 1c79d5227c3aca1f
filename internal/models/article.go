package models

import "time"

// Article is a long-form post. Articles may be published under an
// organization, in which case the organization receives reaction
// notifications alongside the author.
type Article struct {
	BaseModel

	Title          string     `gorm:"type:varchar(255);not null" json:"title"`
	Slug           string     `gorm:"type:varchar(255);index" json:"slug"`
	BodyMarkdown   string     `gorm:"type:text" json:"body_markdown"`
	Published      bool       `gorm:"default:false;index" json:"published"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	UserID         uint       `gorm:"index;not null" json:"user_id"`
	OrganizationID *uint      `gorm:"index" json:"organization_id,omitempty"`
	SubforemID     *uint      `gorm:"index" json:"subforem_id,omitempty"`

	User         User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

// ReactableID implements the reactions.Reactable interface.
func (a *Article) ReactableID() uint { return a.ID }

// ReactableTypeName identifies the polymorphic discriminator stored on
// reaction and notification rows.
func (a *Article) ReactableTypeName() string { return "Article" }

// ReactableOwnerID returns the author of the article.
func (a *Article) ReactableOwnerID() *uint {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

// ReactableOrganizationID returns the owning organization, if any.
func (a *Article) ReactableOrganizationID() *uint { return a.OrganizationID }

// ReactableSubforemID returns the community scope the article belongs to.
func (a *Article) ReactableSubforemID() *uint { return a.SubforemID }
