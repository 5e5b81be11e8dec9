package claim

import "time"

// SettlementEvent is emitted after a claim settles on-chain. The
// consumer service turns these into audit rows and miner totals.
type SettlementEvent struct {
	Claimant   string    `json:"claimant"`
	Amount     string    `json:"amount"`
	AmountBase string    `json:"amount_base"`
	Nonce      int64     `json:"nonce"`
	TxHash     string    `json:"tx_hash"`
	Mode       Mode      `json:"mode"`
	Timestamp  time.Time `json:"ts"`
}
