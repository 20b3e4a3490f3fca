package main

import (
	"os"

	"github.com/codingconcepts/env"
	"github.com/joho/godotenv"

	"github.com/golden-vcr/accounts/internal/store"
	"github.com/golden-vcr/server-common/entry"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL" required:"true"`
}

func main() {
	app, _ := entry.NewApplication("accounts-migrate")
	defer app.Stop()

	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		app.Fail("Failed to load .env file", err)
	}
	config := Config{}
	if err := env.Set(&config); err != nil {
		app.Fail("Failed to load config", err)
	}

	before, after, err := store.Migrate(config.DatabaseURL)
	if err != nil {
		app.Fail("Failed to apply migrations", err)
	}
	if before == after {
		app.Log().Info("Database schema is already up to date", "version", after)
		return
	}
	app.Log().Info("Applied migrations", "versionBefore", before, "versionAfter", after)
}
