// Package bootstrap wires the shared runtime (database, Redis) used by the server and the seeder.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"forum/internal/cache"
	"forum/internal/config"
	"forum/internal/database"
	"forum/internal/notifications"
	"forum/internal/repository"
	"forum/internal/seed"
	"forum/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// Seed, when set, fills the database after migration.
	Seed *seed.Options
}

// InitRuntime connects to DB and Redis and optionally seeds development data.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	r, err := connectRedis(db, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}

	if opts.Seed != nil {
		if cfg.IsProduction() {
			closeAll(db, r)
			return nil, nil, fmt.Errorf("refusing to seed a production database")
		}
		posts := service.NewPostService(
			repository.NewPostRepository(db),
			repository.NewUpvoteRepository(db),
			notifications.NewNotifier(r),
		)
		res, err := seed.Seed(ctx, db, posts, *opts.Seed)
		if err != nil {
			closeAll(db, r)
			return nil, nil, fmt.Errorf("seeding failed: %w", err)
		}
		log.Printf("seeded %d users, %d posts, %d votes", len(res.Users), len(res.Posts), res.Votes)
	}

	return db, r, nil
}

// connectRedis initializes the shared Redis client. On failure it closes db, which the
// caller will not get back.
func connectRedis(db *gorm.DB, url string) (*redis.Client, error) {
	if err := cache.InitRedis(url); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return cache.GetClient(), nil
}

// closeDB releases the connection pool behind db.
func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("error closing sql DB: %v", err)
	}
}

func closeAll(db *gorm.DB, r *redis.Client) {
	closeDB(db)
	cache.SetClient(nil)
	if err := r.Close(); err != nil {
		log.Printf("error closing redis: %v", err)
	}
}
