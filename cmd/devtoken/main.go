package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noah-isme/charity-tasks-api/internal/service"
	"github.com/noah-isme/charity-tasks-api/pkg/config"
)

// devtoken mints a bearer token signed with JWT_SECRET for local testing.
func main() {
	var (
		userID   string
		username string
		email    string
	)
	flag.StringVar(&userID, "user", "", "subject id for the token (required)")
	flag.StringVar(&username, "username", "", "username claim, defaults to the subject id")
	flag.StringVar(&email, "email", "", "email claim")
	flag.Parse()

	if userID == "" {
		flag.Usage()
		os.Exit(2)
	}
	if username == "" {
		username = userID
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Env == config.EnvProduction {
		log.Fatal("refusing to mint tokens in production")
	}

	auth := service.NewAuthService(nil, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})
	token, expires, err := auth.IssueToken(userID, username, email)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "expires at %s\n", expires.Format(time.RFC3339))
	fmt.Println(token)
}
