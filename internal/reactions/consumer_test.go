package reactions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ovationhq/ovation/internal/database/testutil"
	"github.com/ovationhq/ovation/internal/models"
)

func newConsumer(t *testing.T, db *gorm.DB) *Consumer {
	t.Helper()

	consumer, err := NewConsumer(db, newSender(t, db))
	require.NoError(t, err)
	return consumer
}

func TestConsumeNotifiesArticleAuthor(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	ada := seedUser(t, db, "ada", "Ada")
	bob := seedUser(t, db, "bob", "Bob")
	article := seedArticle(t, db, ada, nil)
	seedReaction(t, db, bob, article.ID, TypeArticle, "like", time.Now().UTC())

	consumer := newConsumer(t, db)
	// owner and subforem are resolved from the reactable, not the payload
	require.NoError(t, consumer.Consume(ctx, map[string]any{
		"reactable_id":   article.ID,
		"reactable_type": "Article",
	}))

	var row models.Notification
	require.NoError(t, db.Where("user_id = ?", ada.ID).First(&row).Error)
	require.Equal(t, article.ID, row.NotifiableID)
	require.Equal(t, "Article", row.NotifiableType)
}

func TestConsumeFansOutToOrganization(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	ada := seedUser(t, db, "ada", "Ada")
	bob := seedUser(t, db, "bob", "Bob")
	org := seedOrganization(t, db, "devshop")
	orgID := org.ID
	article := seedArticle(t, db, ada, &orgID)
	seedReaction(t, db, bob, article.ID, TypeArticle, "like", time.Now().UTC())

	consumer := newConsumer(t, db)
	require.NoError(t, consumer.Consume(ctx, articleEvent(article, StatusPersisted)))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.EqualValues(t, 2, count)

	var orgRow models.Notification
	require.NoError(t, db.Where("organization_id = ?", org.ID).First(&orgRow).Error)
	require.Nil(t, orgRow.UserID)
}

func TestConsumeDestroyAfterReactableVanished(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	ada := seedUser(t, db, "ada", "Ada")
	bob := seedUser(t, db, "bob", "Bob")
	article := seedArticle(t, db, ada, nil)
	seedReaction(t, db, bob, article.ID, TypeArticle, "like", time.Now().UTC())

	consumer := newConsumer(t, db)
	event := articleEvent(article, StatusPersisted)
	require.NoError(t, consumer.Consume(ctx, event))

	require.NoError(t, db.Delete(&models.Article{}, article.ID).Error)

	// the destroy payload still names the owner, so the stale row converges
	event.Status = StatusDestroyed
	require.NoError(t, consumer.Consume(ctx, event))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestConsumeWithoutRecipientsIsNoOp(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	consumer := newConsumer(t, db)
	require.NoError(t, consumer.Consume(ctx, map[string]any{
		"reactable_id":   999,
		"reactable_type": "Article",
		"status":         "destroyed",
	}))
}

func TestConsumeRejectsMalformedPayload(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	consumer := newConsumer(t, db)
	err := consumer.Consume(ctx, map[string]any{"reactable_type": "Article"})

	var dataErr *DataError
	require.ErrorAs(t, err, &dataErr)
}

func TestConsumeCommentEvent(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	ada := seedUser(t, db, "ada", "Ada")
	bob := seedUser(t, db, "bob", "Bob")
	cleo := seedUser(t, db, "cleo", "Cleo")
	article := seedArticle(t, db, ada, nil)
	comment := seedComment(t, db, bob, article)
	seedReaction(t, db, cleo, comment.ID, TypeComment, "fire", time.Now().UTC())

	consumer := newConsumer(t, db)
	require.NoError(t, consumer.Consume(ctx, map[string]any{
		"reactable_id":   comment.ID,
		"reactable_type": "Comment",
	}))

	// the comment author is the recipient, not the article author
	var row models.Notification
	require.NoError(t, db.Where("user_id = ?", bob.ID).First(&row).Error)
	require.Equal(t, comment.ID, row.NotifiableID)
	require.Equal(t, "Comment", row.NotifiableType)
}

func TestNewConsumerValidatesArguments(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	_, err := NewConsumer(nil, newSender(t, db))
	require.Error(t, err)
	_, err = NewConsumer(db, nil)
	require.Error(t, err)
}
