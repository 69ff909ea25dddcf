// Package token implements the OnionToken ledger: a capped ERC20 balance
// table whose entire supply is minted to the deploying account.
package token

import (
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/event"

	oniontoken "storj.io/onion-token/pkg"
)

const (
	DefaultName   = "OnionToken"
	DefaultSymbol = "ONION"
)

var (
	zeroAddress common.Address
)

// Option configures optional ledger metadata.
type Option func(*Ledger)

// WithName sets the token name.
func WithName(name string) Option {
	return func(l *Ledger) {
		l.name = name
	}
}

// WithSymbol sets the token symbol.
func WithSymbol(symbol string) Option {
	return func(l *Ledger) {
		l.symbol = symbol
	}
}

// Ledger holds the balances and allowances of a single token deployment.
//
// A Ledger performs no locking. Mutations must be serialized by the caller;
// reads may run concurrently only when no mutation is in flight.
type Ledger struct {
	name        string
	symbol      string
	owner       common.Address
	cap         *big.Int
	blockReward *big.Int
	totalSupply *big.Int

	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int

	transferFeed event.Feed
	approvalFeed event.Feed
}

// New deploys a ledger on behalf of owner. The full cap is minted to the
// owner. cap and blockReward are in base units (10^-18 ONION).
func New(owner common.Address, cap, blockReward *big.Int, opts ...Option) (*Ledger, error) {
	switch {
	case owner == zeroAddress:
		return nil, ErrInvalidParams.New("ERC20: mint to the zero address")
	case cap == nil || cap.Sign() <= 0:
		return nil, ErrInvalidParams.New("ERC20Capped: cap is 0")
	case cap.Cmp(math.MaxBig256) > 0:
		return nil, ErrInvalidParams.New("cap %s overflows uint256", cap)
	case blockReward == nil || blockReward.Sign() < 0:
		return nil, ErrInvalidParams.New("block reward must not be negative")
	case blockReward.Cmp(math.MaxBig256) > 0:
		return nil, ErrInvalidParams.New("block reward %s overflows uint256", blockReward)
	}

	l := &Ledger{
		name:        DefaultName,
		symbol:      DefaultSymbol,
		owner:       owner,
		cap:         new(big.Int).Set(cap),
		blockReward: new(big.Int).Set(blockReward),
		totalSupply: new(big.Int).Set(cap),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.balances[owner] = new(big.Int).Set(cap)
	return l, nil
}

func (l *Ledger) Name() string { return l.name }

func (l *Ledger) Symbol() string { return l.symbol }

func (l *Ledger) Decimals() uint8 { return oniontoken.Decimals }

func (l *Ledger) Owner() common.Address { return l.owner }

func (l *Ledger) Cap() *big.Int { return new(big.Int).Set(l.cap) }

func (l *Ledger) BlockReward() *big.Int { return new(big.Int).Set(l.blockReward) }

func (l *Ledger) TotalSupply() *big.Int { return new(big.Int).Set(l.totalSupply) }

// BalanceOf returns the balance of account, zero for unknown accounts.
func (l *Ledger) BalanceOf(account common.Address) *big.Int {
	return new(big.Int).Set(l.balanceOf(account))
}

// Allowance returns how much spender may still move on behalf of owner.
func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	return new(big.Int).Set(l.allowance(owner, spender))
}

// Accounts returns every account holding a non-zero balance, sorted by
// address.
func (l *Ledger) Accounts() []common.Address {
	accounts := make([]common.Address, 0, len(l.balances))
	for account := range l.balances {
		accounts = append(accounts, account)
	}
	slices.SortFunc(accounts, func(a, b common.Address) int {
		return a.Cmp(b)
	})
	return accounts
}

// Transfer moves amount from the from account to the to account. Either both
// balances change or neither does.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if err := l.transfer(from, to, amount); err != nil {
		return err
	}
	l.transferFeed.Send(TransferEvent{From: from, To: to, Value: new(big.Int).Set(amount)})
	return nil
}

// Approve sets the amount spender may transfer on behalf of owner,
// replacing any previous allowance.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return l.approve(owner, spender, amount)
}

// IncreaseAllowance raises the allowance of spender over owner's tokens.
func (l *Ledger) IncreaseAllowance(owner, spender common.Address, added *big.Int) error {
	if err := checkAmount(added); err != nil {
		return err
	}
	next := new(big.Int).Add(l.allowance(owner, spender), added)
	if next.Cmp(math.MaxBig256) > 0 {
		return ErrInvalidAmount.New("allowance overflows uint256")
	}
	return l.approve(owner, spender, next)
}

// DecreaseAllowance lowers the allowance of spender over owner's tokens.
func (l *Ledger) DecreaseAllowance(owner, spender common.Address, subtracted *big.Int) error {
	if err := checkAmount(subtracted); err != nil {
		return err
	}
	current := l.allowance(owner, spender)
	if current.Cmp(subtracted) < 0 {
		return ErrInsufficientAllowance.New("ERC20: decreased allowance below zero")
	}
	return l.approve(owner, spender, new(big.Int).Sub(current, subtracted))
}

// TransferFrom moves amount from the from account to the to account using
// the allowance granted by from to spender. An allowance of the maximum
// uint256 value is treated as unlimited and is never decremented.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if spender == zeroAddress {
		return ErrInvalidSpender.New("ERC20: approve to the zero address")
	}

	current := l.allowance(from, spender)
	unlimited := current.Cmp(math.MaxBig256) == 0
	if !unlimited && current.Cmp(amount) < 0 {
		return ErrInsufficientAllowance.New("%s may spend %s of %s, needs %s", spender, current, from, amount)
	}

	if err := l.transfer(from, to, amount); err != nil {
		return err
	}
	if !unlimited {
		remaining := new(big.Int).Sub(current, amount)
		l.setAllowance(from, spender, remaining)
		l.approvalFeed.Send(ApprovalEvent{Owner: from, Spender: spender, Value: new(big.Int).Set(remaining)})
	}
	l.transferFeed.Send(TransferEvent{From: from, To: to, Value: new(big.Int).Set(amount)})
	return nil
}

func (l *Ledger) transfer(from, to common.Address, amount *big.Int) error {
	switch {
	case from == zeroAddress:
		return ErrInvalidSender.New("ERC20: transfer from the zero address")
	case to == zeroAddress:
		return ErrInvalidReceiver.New("ERC20: transfer to the zero address")
	}
	if err := checkAmount(amount); err != nil {
		return err
	}

	fromBalance := l.balanceOf(from)
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance.New("%s holds %s, needs %s", from, fromBalance, amount)
	}

	// Read the receiver after debiting so that self transfers net to zero.
	l.setBalance(from, new(big.Int).Sub(fromBalance, amount))
	l.setBalance(to, new(big.Int).Add(l.balanceOf(to), amount))
	return nil
}

func (l *Ledger) approve(owner, spender common.Address, amount *big.Int) error {
	switch {
	case owner == zeroAddress:
		return ErrInvalidApprover.New("ERC20: approve from the zero address")
	case spender == zeroAddress:
		return ErrInvalidSpender.New("ERC20: approve to the zero address")
	}
	l.setAllowance(owner, spender, amount)
	l.approvalFeed.Send(ApprovalEvent{Owner: owner, Spender: spender, Value: new(big.Int).Set(amount)})
	return nil
}

func (l *Ledger) balanceOf(account common.Address) *big.Int {
	if balance, ok := l.balances[account]; ok {
		return balance
	}
	return common.Big0
}

func (l *Ledger) setBalance(account common.Address, balance *big.Int) {
	if balance.Sign() == 0 {
		delete(l.balances, account)
		return
	}
	l.balances[account] = balance
}

func (l *Ledger) allowance(owner, spender common.Address) *big.Int {
	if allowance, ok := l.allowances[owner][spender]; ok {
		return allowance
	}
	return common.Big0
}

func (l *Ledger) setAllowance(owner, spender common.Address, amount *big.Int) {
	spenders, ok := l.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*big.Int)
		l.allowances[owner] = spenders
	}
	if amount.Sign() == 0 {
		delete(spenders, spender)
		return
	}
	spenders[spender] = new(big.Int).Set(amount)
}

func checkAmount(amount *big.Int) error {
	switch {
	case amount == nil:
		return ErrInvalidAmount.New("amount is missing")
	case amount.Sign() < 0:
		return ErrInvalidAmount.New("amount %s is negative", amount)
	case amount.Cmp(math.MaxBig256) > 0:
		return ErrInvalidAmount.New("amount %s overflows uint256", amount)
	}
	return nil
}
