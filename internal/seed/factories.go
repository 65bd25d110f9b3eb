package seed

import (
	"fmt"
	"log"
	"strings"

	"forum/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by Seed and tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	// usernames handed out so far; gofakeit repeats itself on small pools
	taken map[string]bool
	hash  string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	// a zero seed makes gofakeit pick a random one
	return &Factory{db: db, opts: opts, faker: gofakeit.New(opts.RandSeed), taken: map[string]bool{}}
}

// passwordHash hashes the shared seed password once; every seeded account logs in with it.
func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := f.opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(f.opts.password()), cost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	f.hash = string(b)
	return f.hash, nil
}

// username returns a fresh username that passes registration rules.
func (f *Factory) username() string {
	for {
		name := strings.ReplaceAll(f.faker.Username(), "@", "")
		if len(name) < 3 || f.taken[strings.ToLower(name)] {
			name = fmt.Sprintf("%s%d", name, f.faker.Number(100, 9999))
		}
		if !f.taken[strings.ToLower(name)] {
			f.taken[strings.ToLower(name)] = true
			return name
		}
	}
}

// CreateUser constructs and persists a sample user.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}

	name := f.username()
	user := &models.User{
		Username: name,
		Email:    strings.ToLower(name) + "@" + f.faker.DomainName(),
		Password: hash,
	}
	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost turns a fixture into an unsaved post owned by author.
func (f *Factory) BuildPost(author *models.User, fixture FixturePost) *models.Post {
	return &models.Post{
		Title:            fixture.Title,
		Text:             fixture.Text,
		OriginalPosterID: author.ID,
		CreatedAt:        fixture.CreatedAt,
		UpdatedAt:        fixture.CreatedAt,
	}
}

// CreatePostsBatch persists multiple posts in batches.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	size := f.opts.BatchSize
	if size <= 0 {
		size = 50
	}
	if err := f.db.CreateInBatches(posts, size).Error; err != nil {
		return err
	}
	log.Printf("CreatePostsBatch: %d posts", len(posts))
	return nil
}
