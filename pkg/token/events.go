package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// TransferEvent is delivered to transfer subscribers after a successful
// Transfer or TransferFrom.
type TransferEvent struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

// ApprovalEvent is delivered to approval subscribers whenever an allowance
// is set, including the decrement performed by TransferFrom.
type ApprovalEvent struct {
	Owner   common.Address
	Spender common.Address
	Value   *big.Int
}

// SubscribeTransfers registers ch for transfer notifications. Delivery blocks
// the mutating call until every subscriber has received the event, so
// subscribers should use buffered channels or drain promptly.
func (l *Ledger) SubscribeTransfers(ch chan<- TransferEvent) event.Subscription {
	return l.transferFeed.Subscribe(ch)
}

// SubscribeApprovals registers ch for approval notifications. See
// SubscribeTransfers for delivery semantics.
func (l *Ledger) SubscribeApprovals(ch chan<- ApprovalEvent) event.Subscription {
	return l.approvalFeed.Subscribe(ch)
}
