package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/roach88/limitidx/internal/order"
)

// LimitOrderUpdatedABI describes the log emitted on every order update.
const LimitOrderUpdatedABI = `[{
	"anonymous": false,
	"name": "LimitOrderUpdated",
	"type": "event",
	"inputs": [
		{"indexed": false, "name": "makerAddress", "type": "address"},
		{"indexed": false, "name": "takerAddress", "type": "address"},
		{"indexed": false, "name": "makerAsset",   "type": "address"},
		{"indexed": false, "name": "takerAsset",   "type": "address"},
		{"indexed": false, "name": "makerAmount",  "type": "uint256"},
		{"indexed": false, "name": "takerAmount",  "type": "uint256"},
		{"indexed": false, "name": "expiration",   "type": "uint256"},
		{"indexed": false, "name": "remaining",    "type": "uint256"}
	]
}]`

const limitOrderUpdated = "LimitOrderUpdated"

var limitOrderABI = mustParseABI(LimitOrderUpdatedABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse LimitOrderUpdated ABI: %v", err))
	}
	return parsed
}

// LimitOrderUpdatedTopic is topic 0 of every LimitOrderUpdated log.
var LimitOrderUpdatedTopic = limitOrderABI.Events[limitOrderUpdated].ID

// LogsConfig selects the contract to follow.
type LogsConfig struct {
	Contract  common.Address
	FromBlock *big.Int // nil follows from the chain head
	Buffer    int      // subscription channel size; 0 means 128
	Logger    *slog.Logger
}

// Logs follows LimitOrderUpdated logs of one contract over a node
// subscription. Logs removed by a chain reorganisation are skipped.
type Logs struct {
	sub    ethereum.Subscription
	logs   chan types.Log
	logger *slog.Logger
}

var _ Source = (*Logs)(nil)

// NewLogs subscribes to the contract's update logs.
func NewLogs(ctx context.Context, filterer ethereum.LogFilterer, cfg LogsConfig) (*Logs, error) {
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 128
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	query := ethereum.FilterQuery{
		FromBlock: cfg.FromBlock,
		Addresses: []common.Address{cfg.Contract},
		Topics:    [][]common.Hash{{LimitOrderUpdatedTopic}},
	}

	ch := make(chan types.Log, buffer)
	sub, err := filterer.SubscribeFilterLogs(ctx, query, ch)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s logs: %w", cfg.Contract.Hex(), err)
	}

	return &Logs{sub: sub, logs: ch, logger: logger}, nil
}

// Next returns the next log as a delivery. It returns io.EOF when the
// subscription ends without error.
func (l *Logs) Next(ctx context.Context) (Delivery, error) {
	for {
		select {
		case <-ctx.Done():
			return Delivery{}, ctx.Err()

		case err, ok := <-l.sub.Err():
			if !ok || err == nil {
				return Delivery{}, io.EOF
			}
			return Delivery{}, fmt.Errorf("log subscription: %w", err)

		case lg := <-l.logs:
			if lg.Removed {
				l.logger.Warn("skipping removed log",
					"tx", lg.TxHash.Hex(),
					"index", lg.Index,
					"block", lg.BlockNumber,
				)
				continue
			}
			ev, err := DecodeLog(lg)
			return NewDelivery(ev, err, nil), nil
		}
	}
}

// Close ends the subscription.
func (l *Logs) Close() error {
	l.sub.Unsubscribe()
	return nil
}

// DecodeLog converts a LimitOrderUpdated log into a RawEvent.
// A log with a different topic or undecodable data is malformed.
func DecodeLog(lg types.Log) (order.RawEvent, error) {
	origin := logOrigin(lg)

	if len(lg.Topics) == 0 || lg.Topics[0] != LimitOrderUpdatedTopic {
		return order.RawEvent{Origin: origin}, &order.MalformedEventError{Reason: "not a LimitOrderUpdated log"}
	}

	values := make(map[string]any)
	if err := limitOrderABI.UnpackIntoMap(values, limitOrderUpdated, lg.Data); err != nil {
		return order.RawEvent{Origin: origin}, &order.MalformedEventError{Reason: "undecodable log data", Err: err}
	}

	ev := order.RawEvent{Origin: origin}
	var errs []error
	ev.MakerAddress = logAddress(values, order.FieldMakerAddress, &errs)
	ev.TakerAddress = logAddress(values, order.FieldTakerAddress, &errs)
	ev.MakerAsset = logAddress(values, order.FieldMakerAsset, &errs)
	ev.TakerAsset = logAddress(values, order.FieldTakerAsset, &errs)
	ev.MakerAmount = logAmount(values, order.FieldMakerAmount, &errs)
	ev.TakerAmount = logAmount(values, order.FieldTakerAmount, &errs)
	ev.Expiration = logAmount(values, order.FieldExpiration, &errs)
	ev.Remaining = logAmount(values, order.FieldRemaining, &errs)

	if len(errs) > 0 {
		return ev, &order.MalformedEventError{Reason: "unexpected log field type", Err: errors.Join(errs...)}
	}
	return ev, nil
}

func logAddress(values map[string]any, field string, errs *[]error) string {
	addr, ok := values[field].(common.Address)
	if !ok {
		*errs = append(*errs, fmt.Errorf("%s: got %T", field, values[field]))
		return ""
	}
	return strings.ToLower(addr.Hex())
}

func logAmount(values map[string]any, field string, errs *[]error) order.Quantity {
	v, ok := values[field].(*big.Int)
	if !ok {
		*errs = append(*errs, fmt.Errorf("%s: got %T", field, values[field]))
		return ""
	}
	return order.QuantityOf(v)
}

func logOrigin(lg types.Log) string {
	return fmt.Sprintf("%s#%d", lg.TxHash.Hex(), lg.Index)
}
