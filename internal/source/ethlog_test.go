package source

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/limitidx/internal/order"
)

var testContract = common.HexToAddress("0xC0FFEE0000000000000000000000000000000001")

// fakeFilterer feeds canned logs through a subscription.
type fakeFilterer struct {
	logs  []types.Log
	fail  error
	query ethereum.FilterQuery
}

func (f *fakeFilterer) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return f.logs, nil
}

func (f *fakeFilterer) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.query = q
	return event.NewSubscription(func(quit <-chan struct{}) error {
		if f.fail != nil {
			return f.fail
		}
		for _, lg := range f.logs {
			select {
			case ch <- lg:
			case <-quit:
				return nil
			}
		}
		<-quit
		return nil
	}), nil
}

func packUpdate(t *testing.T, remaining int64) []byte {
	t.Helper()
	data, err := limitOrderABI.Events[limitOrderUpdated].Inputs.Pack(
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		common.HexToAddress("0x3333333333333333333333333333333333333333"),
		common.HexToAddress("0x4444444444444444444444444444444444444444"),
		big.NewInt(100),
		big.NewInt(200),
		big.NewInt(9999),
		big.NewInt(remaining),
	)
	require.NoError(t, err)
	return data
}

func updateLog(t *testing.T, remaining int64, index uint) types.Log {
	return types.Log{
		Address: testContract,
		Topics:  []common.Hash{LimitOrderUpdatedTopic},
		Data:    packUpdate(t, remaining),
		TxHash:  common.HexToHash("0xabcdef"),
		Index:   index,
	}
}

func TestDecodeLog(t *testing.T) {
	ev, err := DecodeLog(updateLog(t, 50, 3))
	require.NoError(t, err)

	assert.Equal(t, "0x1111111111111111111111111111111111111111", ev.MakerAddress)
	assert.Equal(t, "0x4444444444444444444444444444444444444444", ev.TakerAsset)
	assert.Equal(t, order.Quantity("100"), ev.MakerAmount)
	assert.Equal(t, order.Quantity("9999"), ev.Expiration)
	assert.Equal(t, order.Quantity("50"), ev.Remaining)
	assert.Equal(t, common.HexToHash("0xabcdef").Hex()+"#3", ev.Origin)

	parsed, err := ev.Parse()
	require.NoError(t, err)
	assert.Equal(t,
		"0xca3a35506b4f1e0bc0cf1a6dcf14ad60c6ef94b8c5ddfeb3e328c6ab60cebbe0",
		order.MustIdentity(parsed.IdentityInput),
	)
}

func TestDecodeLog_Malformed(t *testing.T) {
	wrongTopic := updateLog(t, 1, 0)
	wrongTopic.Topics = []common.Hash{common.HexToHash("0x01")}
	_, err := DecodeLog(wrongTopic)
	assert.True(t, order.IsMalformed(err))

	truncated := updateLog(t, 1, 0)
	truncated.Data = truncated.Data[:64]
	ev, err := DecodeLog(truncated)
	assert.True(t, order.IsMalformed(err))
	assert.NotEmpty(t, ev.Origin)
}

func TestLogs_FollowsSubscription(t *testing.T) {
	removed := updateLog(t, 70, 1)
	removed.Removed = true
	filterer := &fakeFilterer{logs: []types.Log{updateLog(t, 100, 0), removed, updateLog(t, 50, 2)}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src, err := NewLogs(ctx, filterer, LogsConfig{Contract: testContract})
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []common.Address{testContract}, filterer.query.Addresses)
	assert.Equal(t, LimitOrderUpdatedTopic, filterer.query.Topics[0][0])

	d1, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, order.Quantity("100"), d1.Event.Remaining)

	d2, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, order.Quantity("50"), d2.Event.Remaining, "removed log is skipped")

	short, shortCancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer shortCancel()
	_, err = src.Next(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLogs_SubscriptionError(t *testing.T) {
	filterer := &fakeFilterer{fail: errors.New("connection reset")}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src, err := NewLogs(ctx, filterer, LogsConfig{Contract: testContract})
	require.NoError(t, err)

	_, err = src.Next(ctx)
	assert.ErrorContains(t, err, "connection reset")
}
