package order

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// recordJSON is the externally visible record shape.
// Amounts are decimal strings; remainingAmount is null until first merge.
type recordJSON struct {
	ID              string  `json:"id"`
	MakerAddress    string  `json:"makerAddress"`
	TakerAddress    string  `json:"takerAddress"`
	MakerAsset      string  `json:"makerAsset"`
	TakerAsset      string  `json:"takerAsset"`
	MakerAmount     string  `json:"makerAmount"`
	TakerAmount     string  `json:"takerAmount"`
	Expiration      string  `json:"expiration"`
	RemainingAmount *string `json:"remainingAmount"`
	UpdatesCount    uint64  `json:"updatesCount"`
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:           r.ID,
		MakerAddress: r.MakerAddress,
		TakerAddress: r.TakerAddress,
		MakerAsset:   r.MakerAsset,
		TakerAsset:   r.TakerAsset,
		MakerAmount:  decimal(r.MakerAmount),
		TakerAmount:  decimal(r.TakerAmount),
		Expiration:   decimal(r.Expiration),
		UpdatesCount: r.UpdatesCount,
	}
	if r.RemainingAmount != nil {
		s := r.RemainingAmount.String()
		out.RemainingAmount = &s
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	rec := Record{
		ID:           in.ID,
		MakerAddress: in.MakerAddress,
		TakerAddress: in.TakerAddress,
		MakerAsset:   in.MakerAsset,
		TakerAsset:   in.TakerAsset,
		UpdatesCount: in.UpdatesCount,
	}

	var err error
	if rec.MakerAmount, err = parseDecimal(FieldMakerAmount, in.MakerAmount); err != nil {
		return err
	}
	if rec.TakerAmount, err = parseDecimal(FieldTakerAmount, in.TakerAmount); err != nil {
		return err
	}
	if rec.Expiration, err = parseDecimal(FieldExpiration, in.Expiration); err != nil {
		return err
	}
	if in.RemainingAmount != nil {
		if rec.RemainingAmount, err = parseDecimal(FieldRemainingAmount, *in.RemainingAmount); err != nil {
			return err
		}
	}

	*r = rec
	return nil
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseDecimal(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("record %s: invalid decimal %q", field, s)
	}
	return v, nil
}
