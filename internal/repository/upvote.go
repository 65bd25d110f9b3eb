package repository

import (
	"context"
	"errors"

	"forum/internal/cache"
	"forum/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteOutcome reports which transition a vote caused.
type VoteOutcome string

const (
	// VoteCreated means the user had no vote on the post; points moved by the vote value.
	VoteCreated VoteOutcome = "created"
	// VoteChanged means the user flipped direction; points moved by twice the vote value.
	VoteChanged VoteOutcome = "changed"
	// VoteUnchanged means the user repeated their current vote; nothing was written.
	VoteUnchanged VoteOutcome = "unchanged"
)

// UpvoteRepository applies votes so that posts.points always equals the sum of upvote values.
type UpvoteRepository interface {
	// Apply records value (+1 or -1) as userID's vote on postID and returns the post's resulting points.
	Apply(ctx context.Context, userID, postID uint, value int) (VoteOutcome, int, error)
	// Get returns nil, nil when the user has not voted on the post.
	Get(ctx context.Context, userID, postID uint) (*models.Upvote, error)
}

type upvoteRepository struct {
	db *gorm.DB
}

// NewUpvoteRepository returns a new UpvoteRepository implementation.
func NewUpvoteRepository(db *gorm.DB) UpvoteRepository {
	return &upvoteRepository{db: db}
}

func (r *upvoteRepository) Apply(ctx context.Context, userID, postID uint, value int) (VoteOutcome, int, error) {
	if !models.IsValidVote(value) {
		return "", 0, models.NewFieldError(models.CodeValidation, "value", "Vote must be 1 or -1")
	}

	var (
		outcome VoteOutcome
		points  int
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The post row lock serializes concurrent votes on the same post.
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var post models.Post
		if err := q.Select("id", "points").First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", postID)
			}
			return err
		}

		var existing models.Upvote
		err := tx.Where("user_id = ? AND post_id = ?", userID, postID).Take(&existing).Error
		var delta int
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := models.Upvote{UserID: userID, PostID: postID, Value: value}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
			delta = value
			outcome = VoteCreated
		case err != nil:
			return err
		case existing.Value == value:
			outcome = VoteUnchanged
			points = post.Points
			return nil
		default:
			if err := tx.Model(&models.Upvote{}).
				Where("user_id = ? AND post_id = ?", userID, postID).
				Update("value", value).Error; err != nil {
				return err
			}
			delta = 2 * value
			outcome = VoteChanged
		}

		if err := tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("points", gorm.Expr("points + ?", delta)).Error; err != nil {
			return err
		}
		points = post.Points + delta
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return "", 0, err
		}
		return "", 0, models.NewInternalError(err)
	}

	if outcome != VoteUnchanged {
		cache.InvalidatePost(ctx, postID)
	}
	return outcome, points, nil
}

func (r *upvoteRepository) Get(ctx context.Context, userID, postID uint) (*models.Upvote, error) {
	var vote models.Upvote
	err := r.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &vote, nil
}
