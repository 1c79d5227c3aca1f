package reactions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ovationhq/ovation/internal/models"
)

func seedUser(t *testing.T, db *gorm.DB, username, name string) models.User {
	t.Helper()

	user := models.User{
		Username: username,
		Name:     name,
		Email:    username + "@example.com",
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedOrganization(t *testing.T, db *gorm.DB, name string) models.Organization {
	t.Helper()

	org := models.Organization{Name: name, Slug: name}
	require.NoError(t, db.Create(&org).Error)
	return org
}

func seedArticle(t *testing.T, db *gorm.DB, author models.User, orgID *uint) models.Article {
	t.Helper()

	article := models.Article{
		Title:          "Profiling allocations in hot loops",
		Published:      true,
		UserID:         author.ID,
		OrganizationID: orgID,
	}
	require.NoError(t, db.Create(&article).Error)
	return article
}

func seedComment(t *testing.T, db *gorm.DB, author models.User, article models.Article) models.Comment {
	t.Helper()

	comment := models.Comment{
		BodyMarkdown: "Great write-up!",
		UserID:       author.ID,
		ArticleID:    article.ID,
	}
	require.NoError(t, db.Create(&comment).Error)
	return comment
}

func seedReaction(t *testing.T, db *gorm.DB, user models.User, reactableID uint, reactableType Type, category string, createdAt time.Time) models.Reaction {
	t.Helper()

	reaction := models.Reaction{
		BaseModel:     models.BaseModel{CreatedAt: createdAt, UpdatedAt: createdAt},
		UserID:        user.ID,
		ReactableID:   reactableID,
		ReactableType: string(reactableType),
		Category:      category,
	}
	require.NoError(t, db.Create(&reaction).Error)
	return reaction
}

func articleEvent(article models.Article, status Status) Event {
	return Event{
		ReactableID:         article.ID,
		ReactableType:       TypeArticle,
		ReactableUserID:     uintPtr(article.UserID),
		ReactableSubforemID: article.SubforemID,
		Status:              status,
	}
}
