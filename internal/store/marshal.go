package store

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/roach88/limitidx/internal/order"
)

// amountText renders an amount as decimal TEXT for SQL storage.
func amountText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// nullableAmount maps an unset amount to SQL NULL.
func nullableAmount(v *big.Int) any {
	if v == nil {
		return nil
	}
	return v.String()
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid stored amount %q", s)
	}
	return v, nil
}

// marshalRecord encodes a record for key-value backends.
// The value is the externally visible JSON shape of order.Record.
func marshalRecord(rec order.Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

func unmarshalRecord(data []byte) (order.Record, error) {
	var rec order.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return order.Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}
