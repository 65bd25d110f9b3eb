package service

import (
	"context"
	"log/slog"
	"time"

	"forum/internal/middleware"
	"forum/internal/models"
	"forum/internal/notifications"
	"forum/internal/observability"
	"forum/internal/repository"
	"forum/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// EventPublisher broadcasts post events to connected clients.
type EventPublisher interface {
	Broadcast(ctx context.Context, eventType string, payload any) error
	NotifyUser(ctx context.Context, userID uint, eventType string, payload any) error
}

type PostService struct {
	postRepo repository.PostRepository
	voteRepo repository.UpvoteRepository
	events   EventPublisher
}

type CreatePostInput struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type UpdatePostInput struct {
	PostID uint   `json:"-"`
	Title  string `json:"title"`
	Text   string `json:"text"`
}

type ListPostsInput struct {
	Limit int
	// Cursor is the RFC3339Nano created_at of the last post already seen.
	Cursor string
}

// PostPage is one page of the newest-first feed.
type PostPage struct {
	Posts      []*models.Post `json:"posts"`
	HasMore    bool           `json:"has_more"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// VoteResult is the post after a vote together with the transition the vote caused.
type VoteResult struct {
	Post    *models.Post           `json:"post"`
	Outcome repository.VoteOutcome `json:"outcome"`
}

// NewPostService wires the post service. events may be nil.
func NewPostService(
	postRepo repository.PostRepository,
	voteRepo repository.UpvoteRepository,
	events EventPublisher,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		voteRepo: voteRepo,
		events:   events,
	}
}

// Vote records the viewer's +1 or -1 on a post and keeps the post's points in step.
// Repeating the current vote changes nothing.
func (s *PostService) Vote(ctx context.Context, viewer Viewer, postID uint, value int) (*VoteResult, error) {
	span, ctx := observability.StartSpan(ctx, "post", "vote",
		attribute.Int64("post.id", int64(postID)),
		attribute.Int("vote.value", value),
	)
	defer span.End()

	if !viewer.Authenticated() {
		return nil, models.NewUnauthorizedError("not authenticated")
	}
	if !models.IsValidVote(value) {
		return nil, models.NewFieldError(models.CodeValidation, "value", "Vote must be 1 or -1")
	}

	outcome, points, err := s.voteRepo.Apply(ctx, viewer.UserID, postID, value)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.VotesTotal.WithLabelValues(string(outcome)).Inc()
	span.AddAttributes(attribute.String("vote.outcome", string(outcome)))

	post, err := s.GetPost(ctx, viewer, postID)
	if err != nil {
		return nil, err
	}

	if outcome != repository.VoteUnchanged {
		payload := notifications.PostVotedPayload{
			PostID:  postID,
			VoterID: viewer.UserID,
			Value:   value,
			Points:  points,
			Outcome: string(outcome),
		}
		s.publish(ctx, notifications.EventPostVoted, payload)
		if post.OriginalPosterID != viewer.UserID {
			s.notify(ctx, post.OriginalPosterID, notifications.EventPostVoted, payload)
		}
	}

	return &VoteResult{Post: post, Outcome: outcome}, nil
}

func (s *PostService) CreatePost(ctx context.Context, viewer Viewer, in CreatePostInput) (*models.Post, error) {
	if !viewer.Authenticated() {
		return nil, models.NewUnauthorizedError("not authenticated")
	}
	if errs := validation.ValidatePost(in.Title, in.Text); len(errs) > 0 {
		return nil, models.NewFieldErrors(errs)
	}

	post := &models.Post{
		Title:            in.Title,
		Text:             in.Text,
		OriginalPosterID: viewer.UserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	s.publish(ctx, notifications.EventPostCreated, notifications.PostPayload{
		PostID:           post.ID,
		OriginalPosterID: post.OriginalPosterID,
		Title:            post.Title,
	})

	return s.GetPost(ctx, viewer, post.ID)
}

func (s *PostService) GetPost(ctx context.Context, viewer Viewer, id uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, viewer, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

// ListPosts returns the newest posts older than the cursor.
func (s *PostService) ListPosts(ctx context.Context, viewer Viewer, in ListPostsInput) (*PostPage, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var before *time.Time
	if in.Cursor != "" {
		t, err := time.Parse(time.RFC3339Nano, in.Cursor)
		if err != nil {
			return nil, models.NewFieldError(models.CodeValidation, "cursor", "Invalid cursor")
		}
		before = &t
	}

	// one extra row tells us whether another page exists
	posts, err := s.postRepo.List(ctx, limit+1, before)
	if err != nil {
		return nil, err
	}

	page := &PostPage{Posts: posts}
	if len(posts) > limit {
		page.Posts = posts[:limit]
		page.HasMore = true
	}
	if err := s.decorate(ctx, viewer, page.Posts); err != nil {
		return nil, err
	}
	if page.HasMore {
		page.NextCursor = page.Posts[len(page.Posts)-1].CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if page.Posts == nil {
		page.Posts = []*models.Post{}
	}
	return page, nil
}

func (s *PostService) UpdatePost(ctx context.Context, viewer Viewer, in UpdatePostInput) (*models.Post, error) {
	if !viewer.Authenticated() {
		return nil, models.NewUnauthorizedError("not authenticated")
	}
	if errs := validation.ValidatePost(in.Title, in.Text); len(errs) > 0 {
		return nil, models.NewFieldErrors(errs)
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.OriginalPosterID != viewer.UserID {
		return nil, models.NewForbiddenError("only the original poster can edit this post")
	}

	post.Title = in.Title
	post.Text = in.Text
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return s.GetPost(ctx, viewer, post.ID)
}

func (s *PostService) DeletePost(ctx context.Context, viewer Viewer, id uint) error {
	if !viewer.Authenticated() {
		return models.NewUnauthorizedError("not authenticated")
	}

	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if post.OriginalPosterID != viewer.UserID {
		return models.NewForbiddenError("only the original poster can delete this post")
	}

	if err := s.postRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, notifications.EventPostDeleted, notifications.PostPayload{
		PostID:           id,
		OriginalPosterID: post.OriginalPosterID,
	})
	return nil
}

// decorate fills the per-viewer fields of posts and projects their authors.
func (s *PostService) decorate(ctx context.Context, viewer Viewer, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	statuses := map[uint]int{}
	if viewer.Authenticated() {
		ids := make([]uint, len(posts))
		for i, p := range posts {
			ids[i] = p.ID
		}
		var err error
		statuses, err = s.postRepo.GetVoteStatuses(ctx, viewer.UserID, ids)
		if err != nil {
			return err
		}
	}

	for _, p := range posts {
		p.FillSnippet()
		p.VoteStatus = nil
		if v, ok := statuses[p.ID]; ok {
			v := v
			p.VoteStatus = &v
		}
		p.OriginalPoster = ProjectUser(p.OriginalPoster, viewer.UserID)
	}
	return nil
}

func (s *PostService) publish(ctx context.Context, eventType string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Broadcast(ctx, eventType, payload); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish post event",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
	}
}

func (s *PostService) notify(ctx context.Context, userID uint, eventType string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.NotifyUser(ctx, userID, eventType, payload); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to notify user",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
	}
}
