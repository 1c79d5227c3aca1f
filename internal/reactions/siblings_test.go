package reactions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ovationhq/ovation/internal/database/testutil"
)

func TestSiblingsForOrdersMostRecentFirst(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	owner := seedUser(t, db, "ada", "Ada")
	bob := seedUser(t, db, "bob", "Bob")
	cleo := seedUser(t, db, "cleo", "Cleo")
	article := seedArticle(t, db, owner, nil)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	seedReaction(t, db, bob, article.ID, TypeArticle, "like", base)
	seedReaction(t, db, cleo, article.ID, TypeArticle, "unicorn", base.Add(10*time.Minute))

	agg, err := NewAggregator(db, nil)
	require.NoError(t, err)

	siblings, err := agg.SiblingsFor(ctx, article.ID, TypeArticle, uintPtr(owner.ID))
	require.NoError(t, err)
	require.Len(t, siblings, 2)
	require.Equal(t, cleo.ID, siblings[0].UserID)
	require.Equal(t, "cleo", siblings[0].Username)
	require.Equal(t, bob.ID, siblings[1].UserID)
}

func TestSiblingsForDeduplicatesByUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	owner := seedUser(t, db, "ada", "Ada")
	bob := seedUser(t, db, "bob", "Bob")
	article := seedArticle(t, db, owner, nil)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	seedReaction(t, db, bob, article.ID, TypeArticle, "like", base)
	latest := seedReaction(t, db, bob, article.ID, TypeArticle, "fire", base.Add(5*time.Minute))

	agg, err := NewAggregator(db, nil)
	require.NoError(t, err)

	siblings, err := agg.SiblingsFor(ctx, article.ID, TypeArticle, uintPtr(owner.ID))
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	require.Equal(t, bob.ID, siblings[0].UserID)
	require.WithinDuration(t, latest.CreatedAt, siblings[0].CreatedAt, time.Second)
}

func TestSiblingsForExcludesOwnerAndFilteredCategories(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	owner := seedUser(t, db, "ada", "Ada")
	bob := seedUser(t, db, "bob", "Bob")
	troll := seedUser(t, db, "troll", "Troll")
	article := seedArticle(t, db, owner, nil)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	seedReaction(t, db, owner, article.ID, TypeArticle, "like", base)
	seedReaction(t, db, bob, article.ID, TypeArticle, "like", base.Add(time.Minute))
	seedReaction(t, db, troll, article.ID, TypeArticle, "vomit", base.Add(2*time.Minute))

	agg, err := NewAggregator(db, nil)
	require.NoError(t, err)

	siblings, err := agg.SiblingsFor(ctx, article.ID, TypeArticle, uintPtr(owner.ID))
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	require.Equal(t, bob.ID, siblings[0].UserID)
}

func TestSiblingsForIsScopedToTheReactable(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	owner := seedUser(t, db, "ada", "Ada")
	bob := seedUser(t, db, "bob", "Bob")
	article := seedArticle(t, db, owner, nil)
	other := seedArticle(t, db, owner, nil)
	comment := seedComment(t, db, owner, article)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	seedReaction(t, db, bob, other.ID, TypeArticle, "like", base)
	seedReaction(t, db, bob, comment.ID, TypeComment, "like", base)

	agg, err := NewAggregator(db, nil)
	require.NoError(t, err)

	siblings, err := agg.SiblingsFor(ctx, article.ID, TypeArticle, uintPtr(owner.ID))
	require.NoError(t, err)
	require.Empty(t, siblings)

	// the comment's reaction is visible under its own key
	siblings, err = agg.SiblingsFor(ctx, comment.ID, TypeComment, uintPtr(owner.ID))
	require.NoError(t, err)
	require.Len(t, siblings, 1)
}

func TestSiblingsForMissingReactableIsEmpty(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	agg, err := NewAggregator(db, nil)
	require.NoError(t, err)

	siblings, err := agg.SiblingsFor(ctx, 999, TypeArticle, nil)
	require.NoError(t, err)
	require.Empty(t, siblings)
}

func TestSiblingsForIsDeterministic(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	owner := seedUser(t, db, "ada", "Ada")
	article := seedArticle(t, db, owner, nil)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	for i, username := range []string{"u1", "u2", "u3", "u4"} {
		user := seedUser(t, db, username, username)
		// two users share a timestamp; the id tiebreak keeps the order stable
		seedReaction(t, db, user, article.ID, TypeArticle, "like", base.Add(time.Duration(i/2)*time.Minute))
	}

	agg, err := NewAggregator(db, nil)
	require.NoError(t, err)

	first, err := agg.SiblingsFor(ctx, article.ID, TypeArticle, uintPtr(owner.ID))
	require.NoError(t, err)
	second, err := agg.SiblingsFor(ctx, article.ID, TypeArticle, uintPtr(owner.ID))
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, 4)
}

func TestNewAggregatorRequiresDB(t *testing.T) {
	_, err := NewAggregator(nil, nil)
	require.Error(t, err)
}

func TestCustomCategoryAllowList(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	owner := seedUser(t, db, "ada", "Ada")
	bob := seedUser(t, db, "bob", "Bob")
	article := seedArticle(t, db, owner, nil)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	seedReaction(t, db, bob, article.ID, TypeArticle, "like", base)

	agg, err := NewAggregator(db, []string{"unicorn"})
	require.NoError(t, err)

	siblings, err := agg.SiblingsFor(ctx, article.ID, TypeArticle, uintPtr(owner.ID))
	require.NoError(t, err)
	require.Empty(t, siblings)
}
