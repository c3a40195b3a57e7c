package order

import (
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// IdentityInput is the immutable tuple that names one logical order.
// Two events carrying equal tuples refer to the same order regardless of
// arrival time or the representation of each value.
type IdentityInput struct {
	MakerAddress string // hex, "0x" prefix optional
	TakerAddress string
	MakerAsset   string
	TakerAsset   string
	MakerAmount  *big.Int // unsigned, < 2^256
	TakerAmount  *big.Int
	Expiration   *big.Int
}

// Event is one order-update notification from the event source.
type Event struct {
	IdentityInput

	// Remaining is the latest fillable amount reported by the contract.
	Remaining *big.Int

	// Origin locates the event in its source ("orders.jsonl:12",
	// "limit-orders/0@42", "0x…#3"). Used only for logging.
	Origin string
}

// Validate checks that every required field is present and that Remaining
// fits the contract's uint256. An address consisting of a bare "0x" prefix
// counts as missing.
// Returns a *MalformedEventError naming the first offending field.
func (e Event) Validate() error {
	switch {
	case absent(e.MakerAddress):
		return missing(FieldMakerAddress)
	case absent(e.TakerAddress):
		return missing(FieldTakerAddress)
	case absent(e.MakerAsset):
		return missing(FieldMakerAsset)
	case absent(e.TakerAsset):
		return missing(FieldTakerAsset)
	case e.MakerAmount == nil:
		return missing(FieldMakerAmount)
	case e.TakerAmount == nil:
		return missing(FieldTakerAmount)
	case e.Expiration == nil:
		return missing(FieldExpiration)
	case e.Remaining == nil:
		return missing(FieldRemaining)
	case e.Remaining.Sign() < 0:
		return &MalformedEventError{Field: FieldRemaining, Reason: "negative amount"}
	}
	if _, overflow := uint256.FromBig(e.Remaining); overflow {
		return &MalformedEventError{Field: FieldRemaining, Reason: "exceeds 256 bits"}
	}
	return nil
}

func absent(addr string) bool {
	s := strings.TrimSpace(addr)
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return s == ""
}

// Record is the persisted entity for one order, keyed by ID.
//
// Identity fields are write-once: they are copied in canonical form from the
// first event and never change afterwards. RemainingAmount is nil until the
// first merge and is overwritten by every subsequent event.
type Record struct {
	ID           string
	MakerAddress string
	TakerAddress string
	MakerAsset   string
	TakerAsset   string
	MakerAmount  *big.Int
	TakerAmount  *big.Int
	Expiration   *big.Int

	RemainingAmount *big.Int
	UpdatesCount    uint64
}

// NewRecord creates an empty record for a freshly derived identity.
// in must be the canonical input returned by Derive.
func NewRecord(id string, in IdentityInput) Record {
	return Record{
		ID:           id,
		MakerAddress: in.MakerAddress,
		TakerAddress: in.TakerAddress,
		MakerAsset:   in.MakerAsset,
		TakerAsset:   in.TakerAsset,
		MakerAmount:  cloneInt(in.MakerAmount),
		TakerAmount:  cloneInt(in.TakerAmount),
		Expiration:   cloneInt(in.Expiration),
	}
}

// Identity returns the identity tuple stored on the record.
func (r Record) Identity() IdentityInput {
	return IdentityInput{
		MakerAddress: r.MakerAddress,
		TakerAddress: r.TakerAddress,
		MakerAsset:   r.MakerAsset,
		TakerAsset:   r.TakerAsset,
		MakerAmount:  r.MakerAmount,
		TakerAmount:  r.TakerAmount,
		Expiration:   r.Expiration,
	}
}

// Clone returns a deep copy; big.Int values are not shared.
func (r Record) Clone() Record {
	c := r
	c.MakerAmount = cloneInt(r.MakerAmount)
	c.TakerAmount = cloneInt(r.TakerAmount)
	c.Expiration = cloneInt(r.Expiration)
	c.RemainingAmount = cloneInt(r.RemainingAmount)
	return c
}

// Field names as they appear in the inbound event and persisted record.
const (
	FieldMakerAddress    = "makerAddress"
	FieldTakerAddress    = "takerAddress"
	FieldMakerAsset      = "makerAsset"
	FieldTakerAsset      = "takerAsset"
	FieldMakerAmount     = "makerAmount"
	FieldTakerAmount     = "takerAmount"
	FieldExpiration      = "expiration"
	FieldRemaining       = "remaining"
	FieldRemainingAmount = "remainingAmount"
	FieldUpdatesCount    = "updatesCount"
)

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
