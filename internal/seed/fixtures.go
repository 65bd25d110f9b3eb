package seed

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/posts.yml
var postsYAML []byte

// FixturePost is a sample post shipped with the seeder.
type FixturePost struct {
	Title     string    `yaml:"title"`
	Text      string    `yaml:"text"`
	CreatedAt time.Time `yaml:"created_at"`
}

// LoadFixturePosts decodes the embedded sample posts.
func LoadFixturePosts() ([]FixturePost, error) {
	var doc struct {
		Posts []FixturePost `yaml:"posts"`
	}
	if err := yaml.Unmarshal(postsYAML, &doc); err != nil {
		return nil, fmt.Errorf("decode fixture posts: %w", err)
	}
	return doc.Posts, nil
}
