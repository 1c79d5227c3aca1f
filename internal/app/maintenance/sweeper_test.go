package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ovationhq/ovation/internal/database/testutil"
	"github.com/ovationhq/ovation/internal/models"
	"github.com/ovationhq/ovation/internal/reactions"
)

func newTestSweeper(t *testing.T, db *gorm.DB, opts ...Option) *Sweeper {
	t.Helper()

	agg, err := reactions.NewAggregator(db, nil)
	require.NoError(t, err)
	sender, err := reactions.NewSender(db, agg)
	require.NoError(t, err)
	consumer, err := reactions.NewConsumer(db, sender)
	require.NoError(t, err)
	return NewSweeper(db, consumer, opts...)
}

func seedUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()

	user := models.User{Username: username, Name: username, Email: username + "@example.com"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedArticleWithReaction(t *testing.T, db *gorm.DB, author, reactor models.User) models.Article {
	t.Helper()

	article := models.Article{Title: "Sweep me", Published: true, UserID: author.ID}
	require.NoError(t, db.Create(&article).Error)
	reaction := models.Reaction{
		UserID:        reactor.ID,
		ReactableID:   article.ID,
		ReactableType: "Article",
		Category:      "like",
	}
	require.NoError(t, db.Create(&reaction).Error)
	return article
}

func notifyAll(t *testing.T, db *gorm.DB, sweeper *Sweeper, article models.Article) {
	t.Helper()

	require.NoError(t, sweeper.consumer.Consume(context.Background(), map[string]any{
		"reactable_id":   article.ID,
		"reactable_type": "Article",
	}))
}

func countNotifications(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	return count
}

func TestSweepOnceRemovesOrphanedNotifications(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	ada := seedUser(t, db, "ada")
	bob := seedUser(t, db, "bob")
	article := seedArticleWithReaction(t, db, ada, bob)

	sweeper := newTestSweeper(t, db)
	notifyAll(t, db, sweeper, article)
	require.EqualValues(t, 1, countNotifications(t, db))

	require.NoError(t, db.Delete(&models.Article{}, article.ID).Error)
	require.NoError(t, sweeper.SweepOnce(context.Background()))
	require.EqualValues(t, 0, countNotifications(t, db))
}

func TestSweepOnceRemovesRowsWithoutSiblings(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	ada := seedUser(t, db, "ada")
	bob := seedUser(t, db, "bob")
	article := seedArticleWithReaction(t, db, ada, bob)

	sweeper := newTestSweeper(t, db)
	notifyAll(t, db, sweeper, article)

	// a missed destroy event: the reaction is gone but the row survived
	require.NoError(t, db.Where("reactable_id = ?", article.ID).Delete(&models.Reaction{}).Error)
	require.NoError(t, sweeper.SweepOnce(context.Background()))
	require.EqualValues(t, 0, countNotifications(t, db))
}

func TestSweepOnceRefreshesLiveRows(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	ada := seedUser(t, db, "ada")
	bob := seedUser(t, db, "bob")
	article := seedArticleWithReaction(t, db, ada, bob)

	sweeper := newTestSweeper(t, db)
	notifyAll(t, db, sweeper, article)

	var before models.Notification
	require.NoError(t, db.First(&before).Error)

	require.NoError(t, sweeper.SweepOnce(context.Background()))

	var after models.Notification
	require.NoError(t, db.First(&after).Error)
	require.Equal(t, before.ID, after.ID)
	require.NotEmpty(t, after.JSONData)
	require.EqualValues(t, 1, countNotifications(t, db))
}

func TestSweepOnceIgnoresOtherActions(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	ada := seedUser(t, db, "ada")
	adaID := ada.ID
	other := models.Notification{
		UserID:         &adaID,
		NotifiableID:   1,
		NotifiableType: "Article",
		Action:         "Published",
	}
	require.NoError(t, db.Create(&other).Error)

	sweeper := newTestSweeper(t, db)
	require.NoError(t, sweeper.SweepOnce(context.Background()))
	require.EqualValues(t, 1, countNotifications(t, db))
}

func TestSweeperHonoursBatchSize(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	ada := seedUser(t, db, "ada")
	bob := seedUser(t, db, "bob")
	sweeper := newTestSweeper(t, db, WithBatchSize(1))

	first := seedArticleWithReaction(t, db, ada, bob)
	second := seedArticleWithReaction(t, db, ada, bob)
	notifyAll(t, db, sweeper, first)
	notifyAll(t, db, sweeper, second)

	require.NoError(t, db.Where("reactable_id IN ?", []uint{first.ID, second.ID}).Delete(&models.Reaction{}).Error)
	require.NoError(t, sweeper.SweepOnce(context.Background()))

	// only the first row fit in the batch
	require.EqualValues(t, 1, countNotifications(t, db))
}

func TestSweeperStartAndStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	sweeper := newTestSweeper(t, db, WithSchedule("@every 1h"))
	require.NoError(t, sweeper.Start())

	done := make(chan struct{})
	go func() {
		sweeper.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperStartRejectsBadSchedule(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	sweeper := newTestSweeper(t, db, WithSchedule("not a schedule"))
	require.Error(t, sweeper.Start())
}
