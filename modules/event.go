package modules

// blockVersion is the transaction version code that flags an event as a
// block rather than a regular transaction, per spec §4.1.
const blockVersion = 0

// Decoded carries what a transaction transport has already decoded out of an
// output's unlock script: the destination address and, if present, its
// timelock. Height-lock and signature details are the upstream node's
// concern (spec Non-goals: transaction validation, signature verification).
type Decoded struct {
	Address  string     `json:"address"`
	TimeLock *Timestamp `json:"timelock,omitempty"`
}

// TxInput is one spent output, denormalized with the value/address/timelock
// of the output it consumes so the projector never has to look anything up
// to compute its contribution to the address-level delta.
type TxInput struct {
	TxID     string     `json:"tx_id"`
	Index    uint32     `json:"index"`
	Value    uint64     `json:"value"`
	TokenID  string     `json:"token"`
	Address  string     `json:"address"`
	TimeLock *Timestamp `json:"timelock,omitempty"`
}

// TxOutput is one produced output.
type TxOutput struct {
	Value   uint64  `json:"value"`
	TokenID string  `json:"token"`
	Decoded Decoded `json:"decoded"`
}

// TransactionEvent is the inbound record described in spec §6.
type TransactionEvent struct {
	Version   uint8     `json:"version"`
	TxID      string    `json:"tx_id"`
	Timestamp Timestamp `json:"timestamp"`
	Height    *Height   `json:"height,omitempty"`
	Inputs    []TxInput `json:"inputs"`
	Outputs   []TxOutput `json:"outputs"`
}

// IsBlock reports whether this event is a block-flagged event rather than a
// regular transaction, per spec §4.1 ("treat any block-flagged event as a
// block").
func (e TransactionEvent) IsBlock() bool {
	return e.Version == blockVersion
}
