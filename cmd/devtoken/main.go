// Command devtoken prints a bearer token for local testing of the
// authenticated routes.
//
//	go run ./cmd/devtoken -user 42
//	go run ./cmd/devtoken -user 1 -role ADMIN -ttl 2h
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/cinema-checkout/internal/utils"
)

func main() {
	userID := flag.Uint64("user", 1, "user id placed in the sub claim")
	role := flag.String("role", "", "optional role claim (ADMIN for operator routes)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env: %v", err)
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("missing required env var: JWT_SECRET")
	}
	if *userID == 0 {
		log.Fatal("user id must be positive")
	}

	tok, err := utils.NewAccessToken(secret, *userID, *role, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
