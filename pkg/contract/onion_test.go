package contract

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"storj.io/onion-token/pkg/ethtest"
	"storj.io/onion-token/pkg/token"
	"storj.io/onion-token/pkg/units"
)

var (
	tokenCap         = big.NewInt(100_000_000)
	tokenBlockReward = big.NewInt(50)
)

func deployToken(t *testing.T, owner common.Address) *OnionToken {
	input, err := PackDeploy(tokenCap, tokenBlockReward)
	require.NoError(t, err)
	contract, result, err := Deploy(owner, input)
	require.NoError(t, err)
	require.Len(t, result.Logs, 1)
	return contract
}

func call(t *testing.T, contract *OnionToken, from common.Address, method string, args ...interface{}) []interface{} {
	t.Helper()
	input, err := contract.ABI().Pack(method, args...)
	require.NoError(t, err)
	result, err := contract.Call(from, input)
	require.NoError(t, err)
	values, err := contract.ABI().Unpack(method, result.Output)
	require.NoError(t, err)
	return values
}

func TestDeployToken(t *testing.T) {
	signers := ethtest.Signers(1)
	owner := signers[0]

	input, err := PackDeploy(tokenCap, tokenBlockReward)
	require.NoError(t, err)
	contract, result, err := Deploy(owner.Address, input)
	require.NoError(t, err)

	// The whole supply is minted to the deployer.
	mint, err := contract.ParseTransfer(result.Logs[0])
	require.NoError(t, err)
	require.Equal(t, common.Address{}, mint.From)
	require.Equal(t, owner.Address, mint.To)
	require.Equal(t, "100000000", units.Format(mint.Value))

	require.Equal(t, owner.Address, call(t, contract, owner.Address, "owner")[0])

	totalSupply := call(t, contract, owner.Address, "totalSupply")[0].(*big.Int)
	ownerBalance := call(t, contract, owner.Address, "balanceOf", owner.Address)[0].(*big.Int)
	require.Equal(t, totalSupply, ownerBalance)

	capacity := call(t, contract, owner.Address, "cap")[0].(*big.Int)
	require.Equal(t, "100000000", units.Format(capacity))

	blockReward := call(t, contract, owner.Address, "blockReward")[0].(*big.Int)
	require.Equal(t, "50", units.Format(blockReward))

	require.Equal(t, uint8(18), call(t, contract, owner.Address, "decimals")[0])
	require.Equal(t, "OnionToken", call(t, contract, owner.Address, "name")[0])
	require.Equal(t, "ONION", call(t, contract, owner.Address, "symbol")[0])
}

func TestTransferThroughABI(t *testing.T) {
	signers := ethtest.Signers(3)
	owner, addr1, addr2 := signers[0], signers[1], signers[2]
	contract := deployToken(t, owner.Address)

	input, err := contract.ABI().Pack("transfer", addr1.Address, big.NewInt(50))
	require.NoError(t, err)
	result, err := contract.Call(owner.Address, input)
	require.NoError(t, err)

	ok, err := contract.ABI().Unpack("transfer", result.Output)
	require.NoError(t, err)
	require.Equal(t, true, ok[0])

	require.Len(t, result.Logs, 1)
	transfer, err := contract.ParseTransfer(result.Logs[0])
	require.NoError(t, err)
	require.Equal(t, owner.Address, transfer.From)
	require.Equal(t, addr1.Address, transfer.To)
	require.Equal(t, big.NewInt(50), transfer.Value)
	require.Equal(t, contract.Address(), result.Logs[0].Address)

	call(t, contract, addr1.Address, "transfer", addr2.Address, big.NewInt(50))
	require.Equal(t, "0", call(t, contract, owner.Address, "balanceOf", addr1.Address)[0].(*big.Int).String())
	require.Equal(t, big.NewInt(50), call(t, contract, owner.Address, "balanceOf", addr2.Address)[0])
}

func TestTransferRevertsWithoutBalance(t *testing.T) {
	signers := ethtest.Signers(2)
	owner, addr1 := signers[0], signers[1]
	contract := deployToken(t, owner.Address)

	initialOwnerBalance := contract.Ledger().BalanceOf(owner.Address)

	input, err := contract.ABI().Pack("transfer", owner.Address, big.NewInt(1))
	require.NoError(t, err)
	_, err = contract.Call(addr1.Address, input)
	require.Error(t, err)

	var revertErr *RevertError
	require.True(t, errors.As(err, &revertErr))
	require.Equal(t, "ERC20: transfer amount exceeds balance", revertErr.Reason)
	require.True(t, token.ErrInsufficientBalance.Has(err))

	reason, err := abi.UnpackRevert(revertErr.Data())
	require.NoError(t, err)
	require.Equal(t, "ERC20: transfer amount exceeds balance", reason)

	require.Equal(t, initialOwnerBalance, contract.Ledger().BalanceOf(owner.Address))
}

func TestAllowanceThroughABI(t *testing.T) {
	signers := ethtest.Signers(3)
	owner, spender, receiver := signers[0], signers[1], signers[2]
	contract := deployToken(t, owner.Address)

	call(t, contract, owner.Address, "approve", spender.Address, big.NewInt(100))
	call(t, contract, owner.Address, "increaseAllowance", spender.Address, big.NewInt(20))
	require.Equal(t, big.NewInt(120), call(t, contract, owner.Address, "allowance", owner.Address, spender.Address)[0])

	input, err := contract.ABI().Pack("transferFrom", owner.Address, receiver.Address, big.NewInt(70))
	require.NoError(t, err)
	result, err := contract.Call(spender.Address, input)
	require.NoError(t, err)
	require.Len(t, result.Logs, 2)

	approval, err := contract.ParseApproval(result.Logs[0])
	require.NoError(t, err)
	require.Equal(t, owner.Address, approval.Owner)
	require.Equal(t, spender.Address, approval.Spender)
	require.Equal(t, big.NewInt(50), approval.Value)

	_, err = contract.ParseApproval(result.Logs[1])
	require.Error(t, err)

	input, err = contract.ABI().Pack("decreaseAllowance", spender.Address, big.NewInt(51))
	require.NoError(t, err)
	_, err = contract.Call(owner.Address, input)
	var revertErr *RevertError
	require.True(t, errors.As(err, &revertErr))
	require.Equal(t, "ERC20: decreased allowance below zero", revertErr.Reason)

	input, err = contract.ABI().Pack("transferFrom", owner.Address, receiver.Address, big.NewInt(51))
	require.NoError(t, err)
	_, err = contract.Call(spender.Address, input)
	require.True(t, errors.As(err, &revertErr))
	require.Equal(t, "ERC20: insufficient allowance", revertErr.Reason)
}

func TestMalformedCalls(t *testing.T) {
	owner := ethtest.NewAccount()
	contract := deployToken(t, owner.Address)

	_, err := contract.Call(owner.Address, []byte{0x01})
	require.True(t, Error.Has(err))

	_, err = contract.Call(owner.Address, []byte{0xde, 0xad, 0xbe, 0xef})
	require.True(t, Error.Has(err))

	_, err = contract.Call(owner.Address, contract.ABI().Methods["transfer"].ID)
	require.True(t, Error.Has(err))
}

func TestDeployRejectsZeroCap(t *testing.T) {
	owner := ethtest.NewAccount()
	input, err := PackDeploy(big.NewInt(0), big.NewInt(0))
	require.NoError(t, err)
	_, _, err = Deploy(owner.Address, input)
	require.True(t, token.ErrInvalidParams.Has(err))
}

func TestAtExistingLedger(t *testing.T) {
	signers := ethtest.Signers(2)
	owner, addr1 := signers[0], signers[1]

	ledger, err := token.New(owner.Address, units.Tokens(1000), units.Tokens(1))
	require.NoError(t, err)
	require.NoError(t, ledger.Transfer(owner.Address, addr1.Address, units.Tokens(10)))

	contract, err := At(ledger)
	require.NoError(t, err)
	require.Equal(t, deployToken(t, owner.Address).Address(), contract.Address())
	require.Equal(t, units.Tokens(10), call(t, contract, owner.Address, "balanceOf", addr1.Address)[0])
}
