package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

const defaultPassword = "testpassword123"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Global flags
	apiURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "seed":
		seedCmd(apiURL, args)
	case "session":
		sessionCmd(apiURL, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Account Simulator - Development tool for exercising the account API

USAGE:
  simulator <command> [options]

COMMANDS:
  seed      Register fake accounts with generated avatars
  session   Walk one account through login, refresh, replay and logout
  help      Show this help message

ENVIRONMENT:
  API_URL   Backend API URL (default: http://localhost:8080)

EXAMPLES:
  # Register 5 accounts, every other one with a cover image
  simulator seed --count=5

  # Check token rotation against an existing account
  simulator session --username=player1_1234 --password=testpassword123`)
}

func seedCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	count := fs.Int("count", 3, "Number of accounts to create")
	prefix := fs.String("prefix", "player", "Username prefix")
	fs.Parse(args)

	if *count < 1 || *count > 100 {
		fmt.Println("Error: --count must be between 1 and 100")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)
	suffix := time.Now().UnixNano() % 100000

	fmt.Println("=== Account Simulator: Seed ===")
	fmt.Println()

	for i := 1; i <= *count; i++ {
		username := fmt.Sprintf("%s%d_%d", *prefix, i, suffix)
		account, err := client.Register(
			username,
			username+"@example.com",
			fmt.Sprintf("Player %d", i),
			defaultPassword,
			i%2 == 0,
		)
		if err != nil {
			fmt.Printf("  [%d/%d] FAILED: %v\n", i, *count, err)
			os.Exit(1)
		}
		fmt.Printf("  [%d/%d] %s (%s)\n", i, *count, account.Username, account.ID)
	}

	fmt.Println()
	fmt.Printf("All accounts use password %q\n", defaultPassword)
}

func sessionCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("session", flag.ExitOnError)
	username := fs.String("username", "", "Account username (required)")
	password := fs.String("password", defaultPassword, "Account password")
	fs.Parse(args)

	if *username == "" {
		fmt.Println("Error: --username is required")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)

	fmt.Println("=== Account Simulator: Session ===")
	fmt.Println()

	var (
		login   *LoginData
		rotated *Tokens
		err     error
	)

	step("Logging in", func() error {
		login, err = client.Login(*username, *password)
		return err
	})

	step("Fetching current account", func() error {
		_, err := client.Me(login.AccessToken)
		return err
	})

	step("Refreshing session", func() error {
		rotated, err = client.Refresh(login.RefreshToken)
		return err
	})

	step("Replaying the spent refresh token is rejected", func() error {
		return expectStatus(client.Refresh(login.RefreshToken))
	})

	step("Logging out", func() error {
		return client.Logout(rotated.AccessToken)
	})

	step("Refreshing after logout is rejected", func() error {
		return expectStatus(client.Refresh(rotated.RefreshToken))
	})

	fmt.Println()
	fmt.Println("Session flow OK")
}

func step(label string, fn func() error) {
	fmt.Printf("%s... ", label)
	if err := fn(); err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func expectStatus(_ *Tokens, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil
	}
	if err == nil {
		return errors.New("request unexpectedly succeeded")
	}
	return err
}
