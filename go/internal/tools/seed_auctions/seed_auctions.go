package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/arjunamarcelino/velobid/go/internal/ledger/rpcclient"
	"github.com/arjunamarcelino/velobid/go/internal/listing"
)

func main() {
	_ = godotenv.Load()

	// 1) Load the JSON seeds
	path := getEnv("SEED_FILE", "go/internal/assets/auctions.json")
	seeds, err := listing.LoadSeeds(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load seeds: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to the ledger relay
	client := rpcclient.New(getEnv("LEDGER_RPC_URL", "http://localhost:8545"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// 3) Create and count
	res := listing.CreateSeeds(ctx, client, seeds)

	// 4) Print summary
	fmt.Printf("Auction seed complete: %d total, %d created, %d failed\n", res.Total, res.Created, res.Failed)
	if res.Failed > 0 {
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
