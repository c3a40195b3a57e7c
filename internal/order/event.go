package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Quantity is an unsigned integer as it arrives on the wire: a decimal
// string, a "0x" hex string, or a bare JSON number.
type Quantity string

// UnmarshalJSON accepts both string and number forms.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*q = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = Quantity(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("quantity: %w", err)
		}
		*q = Quantity(n.String())
		return nil
	}
}

// QuantityOf renders v as a decimal Quantity.
func QuantityOf(v *big.Int) Quantity {
	if v == nil {
		return ""
	}
	return Quantity(v.String())
}

// RawEvent is the inbound event shape before validation.
// Field names follow the contract's LimitOrderUpdated parameters.
type RawEvent struct {
	MakerAddress string   `json:"makerAddress" yaml:"maker_address"`
	TakerAddress string   `json:"takerAddress" yaml:"taker_address"`
	MakerAsset   string   `json:"makerAsset" yaml:"maker_asset"`
	TakerAsset   string   `json:"takerAsset" yaml:"taker_asset"`
	MakerAmount  Quantity `json:"makerAmount" yaml:"maker_amount"`
	TakerAmount  Quantity `json:"takerAmount" yaml:"taker_amount"`
	Expiration   Quantity `json:"expiration" yaml:"expiration"`
	Remaining    Quantity `json:"remaining" yaml:"remaining"`

	// Origin is set by the source, never decoded.
	Origin string `json:"-" yaml:"-"`
}

// DecodeEvent decodes one JSON-encoded event. Unknown fields are ignored so
// producers may attach block metadata. Syntax errors are malformed events.
func DecodeEvent(data []byte) (RawEvent, error) {
	var raw RawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawEvent{}, &MalformedEventError{Reason: "invalid JSON", Err: err}
	}
	return raw, nil
}

// Parse converts the raw event into an Event.
// Returns a *MalformedEventError for a missing or unparseable field.
// Widths are not checked here; that is the encoder's job.
func (r RawEvent) Parse() (Event, error) {
	ev := Event{
		IdentityInput: IdentityInput{
			MakerAddress: strings.TrimSpace(r.MakerAddress),
			TakerAddress: strings.TrimSpace(r.TakerAddress),
			MakerAsset:   strings.TrimSpace(r.MakerAsset),
			TakerAsset:   strings.TrimSpace(r.TakerAsset),
		},
		Origin: r.Origin,
	}

	amounts := [...]struct {
		field string
		q     Quantity
		dst   **big.Int
	}{
		{FieldMakerAmount, r.MakerAmount, &ev.MakerAmount},
		{FieldTakerAmount, r.TakerAmount, &ev.TakerAmount},
		{FieldExpiration, r.Expiration, &ev.Expiration},
		{FieldRemaining, r.Remaining, &ev.Remaining},
	}
	for _, a := range amounts {
		if strings.TrimSpace(string(a.q)) == "" {
			continue // reported by Validate in field order
		}
		v, err := ParseQuantity(a.q)
		if err != nil {
			return Event{}, &MalformedEventError{Field: a.field, Reason: "not an unsigned integer", Err: err}
		}
		*a.dst = v
	}

	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// ParseQuantity parses a decimal or "0x" hex unsigned integer.
func ParseQuantity(q Quantity) (*big.Int, error) {
	s := strings.TrimSpace(string(q))
	base := 10
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s, base = s[2:], 16
	}
	if s == "" {
		return nil, fmt.Errorf("empty quantity %q", string(q))
	}

	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("invalid quantity %q", string(q))
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative quantity %q", string(q))
	}
	return v, nil
}

// Fields returns the raw values keyed by field name, for logging an event
// whose identity could not be derived.
func (r RawEvent) Fields() map[string]string {
	return map[string]string{
		FieldMakerAddress: r.MakerAddress,
		FieldTakerAddress: r.TakerAddress,
		FieldMakerAsset:   r.MakerAsset,
		FieldTakerAsset:   r.TakerAsset,
		FieldMakerAmount:  string(r.MakerAmount),
		FieldTakerAmount:  string(r.TakerAmount),
		FieldExpiration:   string(r.Expiration),
		FieldRemaining:    string(r.Remaining),
	}
}

// Raw renders an Event back into its wire shape.
func (e Event) Raw() RawEvent {
	return RawEvent{
		MakerAddress: e.MakerAddress,
		TakerAddress: e.TakerAddress,
		MakerAsset:   e.MakerAsset,
		TakerAsset:   e.TakerAsset,
		MakerAmount:  QuantityOf(e.MakerAmount),
		TakerAmount:  QuantityOf(e.TakerAmount),
		Expiration:   QuantityOf(e.Expiration),
		Remaining:    QuantityOf(e.Remaining),
		Origin:       e.Origin,
	}
}
