package api

import "github.com/andreabadesso/hathor-wallet-service/modules"

// wireEvent mirrors the inbound event schema of spec.md §6 literally:
// {version, tx_id, timestamp, height?, inputs:[{tx_id, index, value,
// token, decoded:{address, timelock?}}], outputs:[{value, token,
// decoded:{address, timelock?}}]}. TransactionEvent's own TxInput
// denormalizes address/timelock onto the input itself (see modules/event.go)
// so the projector never looks anything up; wireEvent is the one place
// that nested "decoded" shape still needs to exist, to decode the wire
// body before flattening it into the domain type.
type wireEvent struct {
	Version   uint8        `json:"version"`
	TxID      string       `json:"tx_id"`
	Timestamp uint32       `json:"timestamp"`
	Height    *uint32      `json:"height,omitempty"`
	Inputs    []wireInput  `json:"inputs"`
	Outputs   []wireOutput `json:"outputs"`
}

type wireDecoded struct {
	Address  string  `json:"address"`
	TimeLock *uint32 `json:"timelock,omitempty"`
}

type wireInput struct {
	TxID    string      `json:"tx_id"`
	Index   uint32      `json:"index"`
	Value   uint64      `json:"value"`
	TokenID string      `json:"token"`
	Decoded wireDecoded `json:"decoded"`
}

type wireOutput struct {
	Value   uint64      `json:"value"`
	TokenID string      `json:"token"`
	Decoded wireDecoded `json:"decoded"`
}

func (e wireEvent) toDomain() modules.TransactionEvent {
	out := modules.TransactionEvent{
		Version:   e.Version,
		TxID:      e.TxID,
		Timestamp: modules.Timestamp(e.Timestamp),
	}
	if e.Height != nil {
		h := modules.Height(*e.Height)
		out.Height = &h
	}
	out.Inputs = make([]modules.TxInput, len(e.Inputs))
	for i, in := range e.Inputs {
		out.Inputs[i] = modules.TxInput{
			TxID:     in.TxID,
			Index:    in.Index,
			Value:    in.Value,
			TokenID:  in.TokenID,
			Address:  in.Decoded.Address,
			TimeLock: wireTimestamp(in.Decoded.TimeLock),
		}
	}
	out.Outputs = make([]modules.TxOutput, len(e.Outputs))
	for i, o := range e.Outputs {
		out.Outputs[i] = modules.TxOutput{
			Value:   o.Value,
			TokenID: o.TokenID,
			Decoded: modules.Decoded{
				Address:  o.Decoded.Address,
				TimeLock: wireTimestamp(o.Decoded.TimeLock),
			},
		}
	}
	return out
}

func wireTimestamp(v *uint32) *modules.Timestamp {
	if v == nil {
		return nil
	}
	ts := modules.Timestamp(*v)
	return &ts
}
