package models

// Comment is a threaded response attached to an article.
type Comment struct {
	BaseModel

	BodyMarkdown string `gorm:"type:text" json:"body_markdown"`
	UserID       uint   `gorm:"index;not null" json:"user_id"`
	ArticleID    uint   `gorm:"index;not null" json:"article_id"`
	ParentID     *uint  `gorm:"index" json:"parent_id,omitempty"`
	Deleted      bool   `gorm:"default:false" json:"deleted"`

	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Article Article `gorm:"foreignKey:ArticleID" json:"article,omitempty"`
}

// ReactableID implements the reactions.Reactable interface.
func (c *Comment) ReactableID() uint { return c.ID }

// ReactableTypeName identifies the polymorphic discriminator stored on
// reaction and notification rows.
func (c *Comment) ReactableTypeName() string { return "Comment" }

// ReactableOwnerID returns the comment author.
func (c *Comment) ReactableOwnerID() *uint {
	if c.UserID == 0 {
		return nil
	}
	id := c.UserID
	return &id
}

// ReactableOrganizationID always returns nil; comments are never owned by
// an organization.
func (c *Comment) ReactableOrganizationID() *uint { return nil }

// ReactableSubforemID always returns nil; comments inherit scoping from
// their article and carry none of their own.
func (c *Comment) ReactableSubforemID() *uint { return nil }
