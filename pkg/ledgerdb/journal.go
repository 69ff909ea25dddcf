package ledgerdb

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"storj.io/onion-token/pkg/token"
)

// Kind names a ledger mutation recorded in the journal.
type Kind string

const (
	KindTransfer          Kind = "transfer"
	KindApprove           Kind = "approve"
	KindIncreaseAllowance Kind = "increase-allowance"
	KindDecreaseAllowance Kind = "decrease-allowance"
	KindTransferFrom      Kind = "transfer-from"
)

// Kinds lists every journal kind in a stable order.
var Kinds = []Kind{
	KindTransfer,
	KindApprove,
	KindIncreaseAllowance,
	KindDecreaseAllowance,
	KindTransferFrom,
}

func (k Kind) valid() bool {
	for _, kind := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Op is a single ledger mutation. Caller is the account that issued it.
// For allowance changes From is the owner and To is the spender; for
// transfer-from Caller is the spender moving tokens From an owner To a
// recipient.
type Op struct {
	Kind   Kind
	Caller common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

func TransferOp(from, to common.Address, amount *big.Int) Op {
	return Op{Kind: KindTransfer, Caller: from, From: from, To: to, Amount: amount}
}

func ApproveOp(owner, spender common.Address, amount *big.Int) Op {
	return Op{Kind: KindApprove, Caller: owner, From: owner, To: spender, Amount: amount}
}

func IncreaseAllowanceOp(owner, spender common.Address, added *big.Int) Op {
	return Op{Kind: KindIncreaseAllowance, Caller: owner, From: owner, To: spender, Amount: added}
}

func DecreaseAllowanceOp(owner, spender common.Address, subtracted *big.Int) Op {
	return Op{Kind: KindDecreaseAllowance, Caller: owner, From: owner, To: spender, Amount: subtracted}
}

func TransferFromOp(spender, from, to common.Address, amount *big.Int) Op {
	return Op{Kind: KindTransferFrom, Caller: spender, From: from, To: to, Amount: amount}
}

// Apply performs the operation against ledger. Ledger rejections are
// returned unwrapped so callers can test them with the token error classes.
func (op Op) Apply(ledger *token.Ledger) error {
	switch op.Kind {
	case KindTransfer:
		return ledger.Transfer(op.Caller, op.To, op.Amount)
	case KindApprove:
		return ledger.Approve(op.Caller, op.To, op.Amount)
	case KindIncreaseAllowance:
		return ledger.IncreaseAllowance(op.Caller, op.To, op.Amount)
	case KindDecreaseAllowance:
		return ledger.DecreaseAllowance(op.Caller, op.To, op.Amount)
	case KindTransferFrom:
		return ledger.TransferFrom(op.Caller, op.From, op.To, op.Amount)
	default:
		return Error.New("unknown operation kind %q", op.Kind)
	}
}

// Entry is an operation accepted into the journal.
type Entry struct {
	Op
	Seq       int64
	CreatedAt time.Time
}
