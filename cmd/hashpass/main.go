// cmd/hashpass/main.go
package main

import (
	"fmt"
	"os"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/auth"
	"github.com/sirupsen/logrus"
)

// Prints a bcrypt hash suitable for seeding a user row by hand.
// Without an argument a temporary password is generated and printed first.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	passwords := auth.NewPasswordManager(cfg)

	var password string
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		password, err = passwords.GenerateTemporaryPassword()
		if err != nil {
			logrus.Fatalf("Error generating password: %v", err)
		}
		fmt.Println(password)
	}

	hash, err := passwords.HashPassword(password)
	if err != nil {
		logrus.Fatalf("Error generating hash: %v", err)
	}
	if err := passwords.VerifyPassword(password, hash); err != nil {
		logrus.Fatalf("Hash verification failed: %v", err)
	}

	fmt.Println(hash)
}
