package main

import (
	"context"
	"flag"
	"log"

	"store-auth-api/core"
)

func main() {
	manifestPath := flag.String("manifest", "users.yaml", "path to the user manifest file")
	flag.Parse()

	cfg := core.Load()
	ctx := context.Background()

	manifest, err := core.LoadUserManifest(*manifestPath)
	if err != nil {
		log.Fatalf("failed to load manifest %s: %v", *manifestPath, err)
	}

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	repo := core.NewPgUserRepository(db)
	created, err := core.ProvisionUsers(ctx, repo, manifest)
	if err != nil {
		log.Fatalf("provisioning failed after %d created: %v", created, err)
	}
	log.Printf("provisioning done: %d of %d users created", created, len(manifest.Users))
}
