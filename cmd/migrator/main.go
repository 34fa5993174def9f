package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"golang.org/x/crypto/bcrypt"

	"kaizoo/internal/config"
	"kaizoo/internal/storage/mongodb"
	"kaizoo/internal/storage/sqlite"
)

const (
	seedEmail    = "admin@kaizoo.app"
	seedName     = "Admin Kaizoo"
	seedPassword = "secret123"
)

type userSeeder interface {
	SeedUser(ctx context.Context, email, name string, passHash []byte, profileReady bool) error
}

func main() {
	var configPath string
	var migrationsPath string
	var seed bool
	flag.StringVar(&configPath, "config", "", "path to config file (or use CONFIG_PATH env)")
	flag.StringVar(&migrationsPath, "migrations", "migrations", "path to sqlite migrations directory")
	flag.BoolVar(&seed, "seed", false, "seed the admin user")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	cfg := config.MustLoad(configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var seeder userSeeder

	switch cfg.Storage {
	case "mongo":
		log.Println("Connecting to MongoDB...")
		storage, err := mongodb.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			log.Fatalf("failed to connect to mongodb: %v", err)
		}
		defer storage.Close(ctx)
		log.Println("MongoDB connected, indexes created successfully")
		seeder = storage
	default:
		m, err := migrate.New(
			"file://"+migrationsPath,
			"sqlite3://"+cfg.StoragePath,
		)
		if err != nil {
			log.Fatalf("failed to init migrations: %v", err)
		}
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Println("No new migrations to apply")
			} else {
				log.Fatalf("failed to apply migrations: %v", err)
			}
		} else {
			log.Println("Migrations applied")
		}
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Fatalf("failed to close migrator: %v %v", srcErr, dbErr)
		}

		if seed {
			storage, err := sqlite.New(cfg.StoragePath)
			if err != nil {
				log.Fatalf("failed to open sqlite storage: %v", err)
			}
			defer storage.Close()
			seeder = storage
		}
	}

	if seed {
		log.Println("Seeding admin user...")
		passHash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash seed password: %v", err)
		}
		if err := seeder.SeedUser(ctx, seedEmail, seedName, passHash, true); err != nil {
			log.Fatalf("failed to seed admin user: %v", err)
		}
		log.Printf("Admin user seeded (%s)", seedEmail)
	}

	fmt.Println("Database initialization completed successfully")
}
