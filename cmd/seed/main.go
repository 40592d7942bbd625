// Command seed replaces the stored users and posts with generated sample data.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/crypto/bcrypt"

	"foodshare_backend/internal/app/config"
	"foodshare_backend/internal/app/di"
	authadapters "foodshare_backend/internal/feature/auth/adapters"
	authentity "foodshare_backend/internal/feature/auth/domain/entity"
	postentity "foodshare_backend/internal/feature/posts/domain/entity"
	"foodshare_backend/internal/platform/geo"
	"foodshare_backend/internal/platform/logger"
)

const (
	usersPerRole  = 10
	postCount     = 20
	maxDistanceKm = 1000

	// km per degree of latitude on the flat-earth approximation
	kmPerDegree = 111
)

var base = geo.Point{Longitude: 77.6335368, Latitude: 12.929191}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	l, syncLogs, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = syncLogs() }()
	slog.SetDefault(l)

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "password123"
	}

	ctx := context.Background()
	stores, err := di.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(ctx); err != nil {
			slog.Error("failed to close stores", "error", err)
		}
	}()

	users := authadapters.NewUserGorm(stores.DB)
	store, err := di.NewPostStore(ctx, cfg.Posts, stores.DB, stores.Mongo)
	if err != nil {
		return err
	}
	index, err := di.NewLocationIndex(cfg.Posts, stores.Redis)
	if err != nil {
		return err
	}
	posts, err := di.NewIndexedPosts(ctx, store, index)
	if err != nil {
		return err
	}

	removed, err := posts.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear posts: %w", err)
	}
	if err := users.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear users: %w", err)
	}
	slog.Info("existing data cleared", "posts", removed)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	f := gofakeit.New(0)
	var donors []*authentity.User
	n := 0
	for i := 0; i < usersPerRole; i++ {
		for _, role := range []string{authentity.RoleDonor, authentity.RoleConsumer} {
			u := &authentity.User{
				Name:     f.Name(),
				Email:    fakeEmail(f, n),
				Password: string(hash),
				Role:     role,
			}
			if err := users.Create(ctx, u); err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			n++
			if role == authentity.RoleDonor {
				donors = append(donors, u)
			}
		}
	}

	for i := 0; i < postCount; i++ {
		loc := randomLocation(base, f.Float64Range(0, maxDistanceKm), f.Float64Range(0, 2*math.Pi))
		p := &postentity.Post{
			DonorID:     donors[i%len(donors)].ID,
			Description: fmt.Sprintf("%s, %d portions", f.Dinner(), f.IntRange(2, 20)),
			ImageURL:    f.URL(),
			Location:    loc,
			CreatedAt:   time.Now().UTC(),
		}
		if err := posts.Create(ctx, p); err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}
	}

	if cfg.Posts.LocationIndex == config.IndexMemory {
		slog.Warn("running servers with LOCATION_INDEX=memory see the seeded posts only after a restart")
	}
	slog.Info("database seeded",
		"donors", len(donors),
		"consumers", usersPerRole,
		"posts", postCount,
		"sample_login", donors[0].Email,
	)
	return nil
}

// fakeEmail makes a generated address unique by tagging the local part with n.
func fakeEmail(f *gofakeit.Faker, n int) string {
	local, domain, _ := strings.Cut(strings.ToLower(f.Email()), "@")
	return fmt.Sprintf("%s%d@%s", local, n, domain)
}

// randomLocation offsets center by distanceKm along bearing (radians from north)
// using the flat-earth approximation.
func randomLocation(center geo.Point, distanceKm, bearing float64) geo.Point {
	dLat := distanceKm * math.Cos(bearing) / kmPerDegree
	dLon := distanceKm * math.Sin(bearing) / (kmPerDegree * math.Cos(center.Latitude*math.Pi/180))
	return geo.Point{
		Longitude: center.Longitude + dLon,
		Latitude:  center.Latitude + dLat,
	}
}
