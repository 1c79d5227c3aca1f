package models

// Reaction records one user's reaction of a given category (like, unicorn,
// fire, ...) on an article or comment. A user holds at most one live
// reaction per (reactable, category) pair; removing it deletes the row.
type Reaction struct {
	BaseModel

	UserID        uint   `gorm:"not null;uniqueIndex:idx_reactions_user_reactable_category" json:"user_id"`
	ReactableID   uint   `gorm:"not null;index:idx_reactions_reactable;uniqueIndex:idx_reactions_user_reactable_category" json:"reactable_id"`
	ReactableType string `gorm:"type:varchar(32);not null;index:idx_reactions_reactable;uniqueIndex:idx_reactions_user_reactable_category" json:"reactable_type"`
	Category      string `gorm:"type:varchar(32);not null;uniqueIndex:idx_reactions_user_reactable_category" json:"category"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
