package repository

import (
	"context"
	"errors"
	"time"

	"forum/internal/cache"
	"forum/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	// GetByID returns the post with its original poster preloaded.
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// List returns up to limit posts created strictly before `before` (all posts when nil), newest first.
	List(ctx context.Context, limit int, before *time.Time) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	// Delete removes the post and every vote on it in one transaction.
	Delete(ctx context.Context, id uint) error
	// GetVoteStatuses maps post id to the user's vote value for the posts the user has voted on.
	GetVoteStatuses(ctx context.Context, userID uint, postIDs []uint) (map[uint]int, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	key := cache.PostKey(id)

	err := cache.Aside(ctx, key, &post, cache.PostTTL, func() error {
		if err := r.db.WithContext(ctx).Preload("OriginalPoster").First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// points move with every vote, so the cached copy only supplies the rest of the row
	var live struct{ Points int }
	err = r.db.WithContext(ctx).Model(&models.Post{}).
		Select("points").
		Where("id = ?", id).
		Take(&live).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cache.InvalidatePost(ctx, id)
		return nil, models.NewNotFoundError("Post", id)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	post.Points = live.Points
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit int, before *time.Time) ([]*models.Post, error) {
	var posts []*models.Post
	q := r.db.WithContext(ctx).Preload("OriginalPoster")
	if before != nil {
		q = q.Where("posts.created_at < ?", *before)
	}
	err := q.Order("posts.created_at DESC").
		Order("posts.id DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{"title": post.Title, "text": post.Text}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Upvote{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

func (r *postRepository) GetVoteStatuses(ctx context.Context, userID uint, postIDs []uint) (map[uint]int, error) {
	statuses := make(map[uint]int, len(postIDs))
	if userID == 0 || len(postIDs) == 0 {
		return statuses, nil
	}

	var votes []models.Upvote
	err := r.db.WithContext(ctx).
		Select("post_id", "value").
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Find(&votes).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, v := range votes {
		statuses[v.PostID] = v.Value
	}
	return statuses, nil
}
