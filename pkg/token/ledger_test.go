package token_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"storj.io/onion-token/pkg/ethtest"
	"storj.io/onion-token/pkg/token"
	"storj.io/onion-token/pkg/units"
)

const (
	tokenCap         = 100_000_000
	tokenBlockReward = 50
)

func TestLedger(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

type LedgerSuite struct {
	suite.Suite

	owner *ethtest.Account
	addr1 *ethtest.Account
	addr2 *ethtest.Account

	ledger *token.Ledger
}

var _ suite.BeforeTest = &LedgerSuite{}

// BeforeTest redeploys the ledger so every test starts from genesis.
func (s *LedgerSuite) BeforeTest(suiteName, testName string) {
	signers := ethtest.Signers(3)
	s.owner, s.addr1, s.addr2 = signers[0], signers[1], signers[2]

	ledger, err := token.New(s.owner.Address, units.Tokens(tokenCap), units.Tokens(tokenBlockReward))
	s.Require().NoError(err)
	s.ledger = ledger
}

func (s *LedgerSuite) requireBalance(account common.Address, want *big.Int) {
	s.T().Helper()
	s.Require().Equal(0, want.Cmp(s.ledger.BalanceOf(account)), "balance of %s: want %s got %s", account, want, s.ledger.BalanceOf(account))
}

func (s *LedgerSuite) TestSetsOwner() {
	s.Equal(s.owner.Address, s.ledger.Owner())
}

func (s *LedgerSuite) TestAssignsTotalSupplyToOwner() {
	s.requireBalance(s.owner.Address, s.ledger.TotalSupply())
	s.Equal(0, s.ledger.TotalSupply().Cmp(s.ledger.Cap()))
}

func (s *LedgerSuite) TestSetsCap() {
	s.Equal("100000000", units.Format(s.ledger.Cap()))
}

func (s *LedgerSuite) TestSetsBlockReward() {
	s.Equal("50", units.Format(s.ledger.BlockReward()))
}

func (s *LedgerSuite) TestMetadata() {
	s.Equal(token.DefaultName, s.ledger.Name())
	s.Equal(token.DefaultSymbol, s.ledger.Symbol())
	s.Equal(uint8(18), s.ledger.Decimals())
}

func (s *LedgerSuite) TestTransferBetweenAccounts() {
	s.Require().NoError(s.ledger.Transfer(s.owner.Address, s.addr1.Address, big.NewInt(50)))
	s.requireBalance(s.addr1.Address, big.NewInt(50))

	s.Require().NoError(s.ledger.Transfer(s.addr1.Address, s.addr2.Address, big.NewInt(50)))
	s.requireBalance(s.addr1.Address, big.NewInt(0))
	s.requireBalance(s.addr2.Address, big.NewInt(50))
}

func (s *LedgerSuite) TestTransferFailsWithoutEnoughTokens() {
	initialOwnerBalance := s.ledger.BalanceOf(s.owner.Address)

	err := s.ledger.Transfer(s.addr1.Address, s.owner.Address, big.NewInt(1))
	s.Require().Error(err)
	s.True(token.ErrInsufficientBalance.Has(err))

	s.requireBalance(s.owner.Address, initialOwnerBalance)
	s.requireBalance(s.addr1.Address, big.NewInt(0))
}

func (s *LedgerSuite) TestTransferUpdatesBalances() {
	initialOwnerBalance := s.ledger.BalanceOf(s.owner.Address)

	s.Require().NoError(s.ledger.Transfer(s.owner.Address, s.addr1.Address, big.NewInt(100)))
	s.Require().NoError(s.ledger.Transfer(s.owner.Address, s.addr2.Address, big.NewInt(50)))

	s.requireBalance(s.owner.Address, new(big.Int).Sub(initialOwnerBalance, big.NewInt(150)))
	s.requireBalance(s.addr1.Address, big.NewInt(100))
	s.requireBalance(s.addr2.Address, big.NewInt(50))
	s.requireConservation()
}

func (s *LedgerSuite) TestTransferEdgeCases() {
	ownerBalance := s.ledger.BalanceOf(s.owner.Address)

	// Self transfers and zero amounts are no-ops.
	s.Require().NoError(s.ledger.Transfer(s.owner.Address, s.owner.Address, ownerBalance))
	s.Require().NoError(s.ledger.Transfer(s.owner.Address, s.addr1.Address, big.NewInt(0)))
	s.requireBalance(s.owner.Address, ownerBalance)
	s.requireBalance(s.addr1.Address, big.NewInt(0))

	err := s.ledger.Transfer(s.owner.Address, common.Address{}, big.NewInt(1))
	s.True(token.ErrInvalidReceiver.Has(err))

	err = s.ledger.Transfer(common.Address{}, s.addr1.Address, big.NewInt(0))
	s.True(token.ErrInvalidSender.Has(err))

	err = s.ledger.Transfer(s.owner.Address, s.addr1.Address, big.NewInt(-1))
	s.True(token.ErrInvalidAmount.Has(err))

	err = s.ledger.Transfer(s.owner.Address, s.addr1.Address, nil)
	s.True(token.ErrInvalidAmount.Has(err))

	s.requireBalance(s.owner.Address, ownerBalance)
	s.requireConservation()
}

func (s *LedgerSuite) TestTransferWholeBalance() {
	supply := s.ledger.TotalSupply()
	s.Require().NoError(s.ledger.Transfer(s.owner.Address, s.addr1.Address, supply))
	s.requireBalance(s.owner.Address, big.NewInt(0))
	s.requireBalance(s.addr1.Address, supply)
	s.Equal([]common.Address{s.addr1.Address}, s.ledger.Accounts())
}

func (s *LedgerSuite) TestApproveAndTransferFrom() {
	s.Require().NoError(s.ledger.Approve(s.owner.Address, s.addr1.Address, big.NewInt(100)))
	s.Equal(0, big.NewInt(100).Cmp(s.ledger.Allowance(s.owner.Address, s.addr1.Address)))

	s.Require().NoError(s.ledger.TransferFrom(s.addr1.Address, s.owner.Address, s.addr2.Address, big.NewInt(60)))
	s.requireBalance(s.addr2.Address, big.NewInt(60))
	s.Equal(0, big.NewInt(40).Cmp(s.ledger.Allowance(s.owner.Address, s.addr1.Address)))

	err := s.ledger.TransferFrom(s.addr1.Address, s.owner.Address, s.addr2.Address, big.NewInt(41))
	s.True(token.ErrInsufficientAllowance.Has(err))
	s.requireBalance(s.addr2.Address, big.NewInt(60))
	s.Equal(0, big.NewInt(40).Cmp(s.ledger.Allowance(s.owner.Address, s.addr1.Address)))
	s.requireConservation()
}

func (s *LedgerSuite) TestTransferFromRespectsBalance() {
	// addr1 approves more than it holds; the balance check still applies and
	// the allowance is untouched.
	s.Require().NoError(s.ledger.Approve(s.addr1.Address, s.addr2.Address, big.NewInt(10)))

	err := s.ledger.TransferFrom(s.addr2.Address, s.addr1.Address, s.addr2.Address, big.NewInt(5))
	s.True(token.ErrInsufficientBalance.Has(err))
	s.Equal(0, big.NewInt(10).Cmp(s.ledger.Allowance(s.addr1.Address, s.addr2.Address)))
}

func (s *LedgerSuite) TestUnlimitedAllowance() {
	s.Require().NoError(s.ledger.Approve(s.owner.Address, s.addr1.Address, math.MaxBig256))
	s.Require().NoError(s.ledger.TransferFrom(s.addr1.Address, s.owner.Address, s.addr2.Address, big.NewInt(500)))
	s.Equal(0, math.MaxBig256.Cmp(s.ledger.Allowance(s.owner.Address, s.addr1.Address)))
}

func (s *LedgerSuite) TestIncreaseDecreaseAllowance() {
	s.Require().NoError(s.ledger.IncreaseAllowance(s.owner.Address, s.addr1.Address, big.NewInt(30)))
	s.Require().NoError(s.ledger.IncreaseAllowance(s.owner.Address, s.addr1.Address, big.NewInt(20)))
	s.Equal(0, big.NewInt(50).Cmp(s.ledger.Allowance(s.owner.Address, s.addr1.Address)))

	s.Require().NoError(s.ledger.DecreaseAllowance(s.owner.Address, s.addr1.Address, big.NewInt(45)))
	s.Equal(0, big.NewInt(5).Cmp(s.ledger.Allowance(s.owner.Address, s.addr1.Address)))

	err := s.ledger.DecreaseAllowance(s.owner.Address, s.addr1.Address, big.NewInt(6))
	s.True(token.ErrInsufficientAllowance.Has(err))

	err = s.ledger.IncreaseAllowance(s.owner.Address, s.addr1.Address, math.MaxBig256)
	s.True(token.ErrInvalidAmount.Has(err))

	err = s.ledger.Approve(s.owner.Address, common.Address{}, big.NewInt(1))
	s.True(token.ErrInvalidSpender.Has(err))
}

func (s *LedgerSuite) TestNotifications() {
	transfers := make(chan token.TransferEvent, 4)
	approvals := make(chan token.ApprovalEvent, 4)
	transferSub := s.ledger.SubscribeTransfers(transfers)
	defer transferSub.Unsubscribe()
	approvalSub := s.ledger.SubscribeApprovals(approvals)
	defer approvalSub.Unsubscribe()

	s.Require().NoError(s.ledger.Transfer(s.owner.Address, s.addr1.Address, big.NewInt(7)))
	s.Require().Error(s.ledger.Transfer(s.addr2.Address, s.addr1.Address, big.NewInt(7)))
	s.Require().NoError(s.ledger.Approve(s.addr1.Address, s.addr2.Address, big.NewInt(3)))

	s.Require().Len(transfers, 1)
	got := <-transfers
	s.Equal(s.owner.Address, got.From)
	s.Equal(s.addr1.Address, got.To)
	s.Equal(int64(7), got.Value.Int64())

	s.Require().Len(approvals, 1)
	approval := <-approvals
	s.Equal(s.addr1.Address, approval.Owner)
	s.Equal(s.addr2.Address, approval.Spender)
	s.Equal(int64(3), approval.Value.Int64())
}

func (s *LedgerSuite) TestReadsReturnCopies() {
	balance := s.ledger.BalanceOf(s.owner.Address)
	balance.SetInt64(0)
	capacity := s.ledger.Cap()
	capacity.SetInt64(0)

	s.Equal("100000000", units.Format(s.ledger.BalanceOf(s.owner.Address)))
	s.Equal("100000000", units.Format(s.ledger.Cap()))
}

func (s *LedgerSuite) requireConservation() {
	s.T().Helper()
	sum := new(big.Int)
	for _, account := range s.ledger.Accounts() {
		sum.Add(sum, s.ledger.BalanceOf(account))
	}
	s.Require().Equal(0, sum.Cmp(s.ledger.TotalSupply()), "sum of balances %s != total supply %s", sum, s.ledger.TotalSupply())
}

func TestNewRejectsInvalidParams(t *testing.T) {
	owner := ethtest.NewAccount()

	for _, tc := range []struct {
		name        string
		owner       common.Address
		cap         *big.Int
		blockReward *big.Int
	}{
		{name: "zero owner", owner: common.Address{}, cap: big.NewInt(1), blockReward: big.NewInt(0)},
		{name: "zero cap", owner: owner.Address, cap: big.NewInt(0), blockReward: big.NewInt(0)},
		{name: "nil cap", owner: owner.Address, cap: nil, blockReward: big.NewInt(0)},
		{name: "negative reward", owner: owner.Address, cap: big.NewInt(1), blockReward: big.NewInt(-1)},
		{name: "cap overflow", owner: owner.Address, cap: new(big.Int).Add(math.MaxBig256, common.Big1), blockReward: big.NewInt(0)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := token.New(tc.owner, tc.cap, tc.blockReward)
			require.Error(t, err)
			require.True(t, token.ErrInvalidParams.Has(err))
		})
	}
}

func TestNewOptions(t *testing.T) {
	owner := ethtest.NewAccount()
	ledger, err := token.New(owner.Address, big.NewInt(10), big.NewInt(0), token.WithName("Shallot"), token.WithSymbol("SHL"))
	require.NoError(t, err)
	require.Equal(t, "Shallot", ledger.Name())
	require.Equal(t, "SHL", ledger.Symbol())
	require.Equal(t, big.NewInt(10), ledger.BalanceOf(owner.Address))
}
