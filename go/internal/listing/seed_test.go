package listing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunamarcelino/velobid/go/internal/ledger/stub"
)

func TestLoadAndCreateSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auctions.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"seller":"0x1111111111111111111111111111111111111111","name":"Lamp","description":"Brass","duration_minutes":"60","starting_bid":"1"},
		{"seller":"0x1111111111111111111111111111111111111111","name":"","description":"Nameless","duration_minutes":"60","starting_bid":"1"},
		{"seller":"0x2222222222222222222222222222222222222222","name":"Vase","description":"Blue","duration_minutes":"30","starting_bid":"0.5"}
	]`), 0o600))

	seeds, err := LoadSeeds(path)
	require.NoError(t, err)
	require.Len(t, seeds, 3)
	assert.Equal(t, "Lamp", seeds[0].Name)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	l := stub.New(clock)

	res := CreateSeeds(context.Background(), l, seeds)
	assert.Equal(t, SeedResult{Total: 3, Created: 2, Failed: 1}, res)
	assert.Equal(t, 2, l.CallCount(stub.MethodCreateAuction))

	vase, ok := l.Auction(2)
	require.True(t, ok)
	assert.Equal(t, "Vase", vase.Name)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", vase.Beneficiary)
	assert.Equal(t, clock.Now().Add(30*time.Minute), vase.EndTime)
}

func TestLoadSeedsMissingFile(t *testing.T) {
	_, err := LoadSeeds(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}
