package migrate

import (
	"migrator/internal/pubkey"
)

// Outcome is the single result of processing one item: a transaction
// signature on success, or the error that stopped it.
type Outcome struct {
	Item      pubkey.Key
	Signature string
	Err       error
}

// Succeeded reports item as migrated by the transaction signature.
func Succeeded(item pubkey.Key, signature string) Outcome {
	return Outcome{Item: item, Signature: signature}
}

// Failed reports item as not migrated because of err.
func Failed(item pubkey.Key, err error) Outcome {
	return Outcome{Item: item, Err: err}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Success and Failure are the serialized forms written to the result files.
type Success struct {
	Signature string     `json:"sig"`
	Item      pubkey.Key `json:"item_mint"`
}

type Failure struct {
	Item  pubkey.Key `json:"mint"`
	Error string     `json:"error"`
}

// BatchResult partitions a finished batch. Order follows completion order.
type BatchResult struct {
	Succeeded []Success
	Failed    []Failure
}

// Len is the number of outcomes in the batch.
func (r BatchResult) Len() int {
	return len(r.Succeeded) + len(r.Failed)
}
