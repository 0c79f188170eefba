package models

import "math/big"

// UserStat is the ledger's per-participant bookkeeping. TotalSpend is in smallest units.
type UserStat struct {
	Address    string   `json:"address"`
	TotalBids  uint64   `json:"total_bids"`
	TotalSpend *big.Int `json:"total_spend"`
}

// ShortAddress renders an address as 0x1234...abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
