// Package seed fills a development database with fake users, the bundled sample posts and
// random votes. It is intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"forum/internal/models"
	"forum/internal/service"

	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account logs in with.
const DefaultPassword = "password123"

// Options configuration for the seeder
type Options struct {
	NumUsers int
	// VotesPerUser is how many distinct posts each user votes on, capped at the number of posts.
	VotesPerUser int
	Password     string
	ShouldClean  bool
	BcryptCost   int
	BatchSize    int
	RandSeed     int64
}

func (o Options) password() string {
	if o.Password == "" {
		return DefaultPassword
	}
	return o.Password
}

// Voter applies votes. *service.PostService satisfies it, so seeded points stay in step with
// the upvote rows exactly as they would for real traffic.
type Voter interface {
	Vote(ctx context.Context, viewer service.Viewer, postID uint, value int) (*service.VoteResult, error)
}

// Result summarises what Seed created.
type Result struct {
	Users []*models.User
	Posts []*models.Post
	Votes int
}

// Seed populates the database with test data
func Seed(ctx context.Context, db *gorm.DB, voter Voter, opts Options) (*Result, error) {
	if opts.NumUsers <= 0 {
		return nil, fmt.Errorf("seed needs at least one user")
	}
	log.Printf("Starting database seeding with %d users...", opts.NumUsers)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	f := NewFactory(db.WithContext(ctx), opts)
	res := &Result{}

	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		res.Users = append(res.Users, u)
	}
	log.Printf("%d users created (password %q)", len(res.Users), opts.password())

	fixtures, err := LoadFixturePosts()
	if err != nil {
		return nil, err
	}
	for i, fx := range fixtures {
		res.Posts = append(res.Posts, f.BuildPost(res.Users[i%len(res.Users)], fx))
	}
	if err := f.CreatePostsBatch(res.Posts); err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}

	res.Votes, err = castVotes(ctx, voter, res.Users, res.Posts, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("%d votes cast", res.Votes)

	log.Println("Database seeding completed successfully")
	return res, nil
}

func castVotes(ctx context.Context, voter Voter, users []*models.User, posts []*models.Post, opts Options) (int, error) {
	if voter == nil || opts.VotesPerUser <= 0 || len(posts) == 0 {
		return 0, nil
	}
	perUser := min(opts.VotesPerUser, len(posts))

	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(seed))
	cast := 0
	for _, u := range users {
		viewer := service.Viewer{UserID: u.ID}
		for _, idx := range r.Perm(len(posts))[:perUser] {
			value := models.VoteUp
			// roughly one vote in four is a downvote
			if r.Intn(4) == 0 {
				value = models.VoteDown
			}
			if _, err := voter.Vote(ctx, viewer, posts[idx].ID, value); err != nil {
				return cast, fmt.Errorf("vote by user %d on post %d: %w", u.ID, posts[idx].ID, err)
			}
			cast++
		}
	}
	return cast, nil
}

// clearData removes seeded rows; upvotes go first because they reference posts and users.
func clearData(db *gorm.DB) error {
	log.Println("Clearing existing data...")
	return db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&models.Upvote{}, &models.Post{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
