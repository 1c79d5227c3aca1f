package reactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ovationhq/ovation/internal/models"
)

// DefaultAggregatedCategories lists the reaction categories that surface as
// notifications. Internal and moderation categories (vomit, thumbsdown)
// never aggregate.
var DefaultAggregatedCategories = []string{"like", "unicorn", "exploding_head", "raised_hands", "fire"}

// Sibling describes one distinct acting user's most recent qualifying
// reaction on a reactable.
type Sibling struct {
	UserID          uint      `json:"user_id"`
	Username        string    `json:"username"`
	Name            string    `json:"name"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Aggregator computes the current sibling set for a reactable. Every call
// queries the datastore fresh; the result is the basis of the
// one-notification-per-key invariant, so caching would trade correctness
// for speed.
type Aggregator struct {
	db         *gorm.DB
	categories []string
}

// NewAggregator constructs an Aggregator. An empty category list falls back
// to DefaultAggregatedCategories.
func NewAggregator(db *gorm.DB, categories []string) (*Aggregator, error) {
	if db == nil {
		return nil, errors.New("reactions: aggregator requires a database handle")
	}
	if len(categories) == 0 {
		categories = DefaultAggregatedCategories
	}
	return &Aggregator{db: db, categories: categories}, nil
}

// SiblingsFor returns the ordered sibling set for the reactable: all other
// users' persisted reactions of the aggregated categories, excluding the
// reactable owner's own reactions, one entry per acting user keyed by that
// user's most recent qualifying reaction, ordered most-recent-first. A
// reactable that no longer exists yields an empty set, not an error.
func (a *Aggregator) SiblingsFor(ctx context.Context, reactableID uint, reactableType Type, excludeUserID *uint) ([]Sibling, error) {
	return a.siblingsWith(ctx, a.db, reactableID, reactableType, excludeUserID)
}

// siblingsWith runs the sibling query on the supplied handle so the upsert
// engine can execute it inside its own transaction.
func (a *Aggregator) siblingsWith(ctx context.Context, db *gorm.DB, reactableID uint, reactableType Type, excludeUserID *uint) ([]Sibling, error) {
	exists, err := reactableExists(ctx, db, reactableID, reactableType)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	query := db.WithContext(ctx).
		Preload("User").
		Where("reactable_id = ? AND reactable_type = ?", reactableID, string(reactableType)).
		Where("category IN ?", a.categories).
		Order("created_at DESC, id DESC")
	if excludeUserID != nil {
		query = query.Where("user_id <> ?", *excludeUserID)
	}

	var rows []models.Reaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("reactions: sibling query: %w", err)
	}

	// Rows arrive newest first, so the first row seen per user is that
	// user's most recent qualifying reaction.
	seen := make(map[uint]struct{}, len(rows))
	siblings := make([]Sibling, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.UserID]; ok {
			continue
		}
		seen[row.UserID] = struct{}{}
		siblings = append(siblings, Sibling{
			UserID:          row.UserID,
			Username:        row.User.Username,
			Name:            row.User.Name,
			ProfileImageURL: row.User.ProfileImageURL,
			CreatedAt:       row.CreatedAt,
		})
	}
	return siblings, nil
}

// ReactableExists reports whether the reactable row is still present.
func ReactableExists(ctx context.Context, db *gorm.DB, reactableID uint, reactableType Type) (bool, error) {
	return reactableExists(ctx, db, reactableID, reactableType)
}

func reactableExists(ctx context.Context, db *gorm.DB, reactableID uint, reactableType Type) (bool, error) {
	var model any
	switch reactableType {
	case TypeArticle:
		model = &models.Article{}
	case TypeComment:
		model = &models.Comment{}
	default:
		return false, nil
	}

	var count int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", reactableID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("reactions: reactable lookup: %w", err)
	}
	return count > 0, nil
}

// loadReactable fetches the reactable row, returning nil without error when
// it no longer exists.
func loadReactable(ctx context.Context, db *gorm.DB, reactableID uint, reactableType Type) (Reactable, error) {
	switch reactableType {
	case TypeArticle:
		var article models.Article
		if err := db.WithContext(ctx).First(&article, reactableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("reactions: load article: %w", err)
		}
		return &article, nil
	case TypeComment:
		var comment models.Comment
		if err := db.WithContext(ctx).First(&comment, reactableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("reactions: load comment: %w", err)
		}
		return &comment, nil
	default:
		return nil, &DataError{Field: "reactable_type", Value: string(reactableType)}
	}
}
