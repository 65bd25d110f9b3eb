// Command seed fills a development database with fake users, sample posts and votes.
package main

import (
	"context"
	"flag"
	"log"

	"forum/internal/bootstrap"
	"forum/internal/config"
	"forum/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of users to create")
	votesPerUser := flag.Int("votes", 20, "Number of posts each user votes on")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	password := flag.String("password", seed.DefaultPassword, "Password for every seeded account")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d users, %d votes each, clean=%v\n", *numUsers, *votesPerUser, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{
		Seed: &seed.Options{
			NumUsers:     *numUsers,
			VotesPerUser: *votesPerUser,
			Password:     *password,
			ShouldClean:  *shouldClean,
		},
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	defer func() { _ = rdb.Close() }()
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}

	log.Printf("All done! Every seeded account uses the password: %s", *password)
}
