package testutil

import (
	"math/big"

	"github.com/roach88/limitidx/internal/order"
)

// SampleID is the identity of SampleInput.
const SampleID = "0xca3a35506b4f1e0bc0cf1a6dcf14ad60c6ef94b8c5ddfeb3e328c6ab60cebbe0"

// SampleInput returns the reference order: maker 0x11..11, taker 0x22..22,
// assets 0x33..33 and 0x44..44, amounts 100 and 200, expiration 9999.
func SampleInput() order.IdentityInput {
	return order.IdentityInput{
		MakerAddress: "0x1111111111111111111111111111111111111111",
		TakerAddress: "0x2222222222222222222222222222222222222222",
		MakerAsset:   "0x3333333333333333333333333333333333333333",
		TakerAsset:   "0x4444444444444444444444444444444444444444",
		MakerAmount:  big.NewInt(100),
		TakerAmount:  big.NewInt(200),
		Expiration:   big.NewInt(9999),
	}
}

// SampleEvent returns an update for SampleInput with the given remaining amount.
func SampleEvent(remaining int64) order.Event {
	return order.Event{
		IdentityInput: SampleInput(),
		Remaining:     big.NewInt(remaining),
	}
}

// EventFor returns an update for SampleInput with maker amount makerAmount.
// Distinct makerAmount values yield distinct identities.
func EventFor(makerAmount, remaining int64) order.Event {
	ev := SampleEvent(remaining)
	ev.MakerAmount = big.NewInt(makerAmount)
	return ev
}

// SampleRaw returns SampleEvent(remaining) in wire form.
func SampleRaw(remaining int64) order.RawEvent {
	return SampleEvent(remaining).Raw()
}
