package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/arjunamarcelino/velobid/go/internal/ledger"
)

// Seed is one auction to create when populating a fresh ledger.
type Seed struct {
	Seller string `json:"seller"`
	Form
}

// SeedResult counts the outcome of CreateSeeds.
type SeedResult struct {
	Total   int
	Created int
	Failed  int
}

// LoadSeeds reads a JSON array of seeds.
func LoadSeeds(path string) ([]Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seeds: %w", err)
	}
	var seeds []Seed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("unmarshal seeds: %w", err)
	}
	return seeds, nil
}

// CreateSeeds validates and creates each seed as its seller, one at a time.
// A failed seed is logged and counted; the rest still run.
func CreateSeeds(ctx context.Context, writer ledger.Writer, seeds []Seed) SeedResult {
	res := SeedResult{Total: len(seeds)}
	for _, s := range seeds {
		if err := createSeed(ctx, writer, s); err != nil {
			log.Error().Err(err).Str("name", s.Name).Str("seller", s.Seller).Msg("failed to seed auction")
			res.Failed++
			continue
		}
		res.Created++
	}
	return res
}

func createSeed(ctx context.Context, writer ledger.Writer, s Seed) error {
	req, err := Validate(s.Form)
	if err != nil {
		return err
	}
	handle, err := writer.CreateAuction(ctx, s.Seller, req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}
	receipt, err := writer.AwaitSettlement(ctx, handle)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}
	if !receipt.Succeeded() {
		return fmt.Errorf("%w: transaction %s reverted", ErrSubmissionRejected, receipt.TxHash)
	}
	return nil
}
