// Package contract exposes a token ledger through the OnionToken ABI, so that
// callers holding ABI encoded call data can execute it in process.
package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/errs"

	"storj.io/onion-token/pkg/token"
	"storj.io/onion-token/pkg/units"
)

// Error is the class of malformed calls: unknown selectors and undecodable
// arguments. Ledger rejections are reported as *RevertError instead.
var Error = errs.Class("contract")

var (
	revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
	revertArgs     = func() abi.Arguments {
		stringType, err := abi.NewType("string", "", nil)
		if err != nil {
			panic(err)
		}
		return abi.Arguments{{Type: stringType}}
	}()
)

// Result is the outcome of a successful call.
type Result struct {
	// Output is the ABI encoded return data.
	Output []byte

	// Logs are the events emitted by the call.
	Logs []*types.Log
}

// RevertError is returned when the ledger rejects a call.
type RevertError struct {
	Reason string
	Err    error
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

func (e *RevertError) Unwrap() error {
	return e.Err
}

// ErrorData returns the hex encoded Error(string) revert payload.
func (e *RevertError) ErrorData() interface{} {
	return hexutil.Encode(e.Data())
}

// Data returns the Error(string) revert payload.
func (e *RevertError) Data() []byte {
	packed, err := revertArgs.Pack(e.Reason)
	if err != nil {
		// A single string argument always packs.
		panic(err)
	}
	return append(append([]byte(nil), revertSelector...), packed...)
}

// OnionToken is a deployed token ledger addressed through its ABI.
type OnionToken struct {
	address common.Address
	abi     *abi.ABI
	ledger  *token.Ledger
}

// PackDeploy encodes constructor arguments; cap and reward are whole tokens.
func PackDeploy(cap, reward *big.Int) ([]byte, error) {
	parsed, err := OnionTokenMetaData.GetAbi()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	input, err := parsed.Pack("", cap, reward)
	return input, Error.Wrap(err)
}

// Deploy decodes the constructor arguments in input and deploys a new ledger
// owned by deployer. The contract address is derived from the deployer the
// same way the first contract creation of an account is.
func Deploy(deployer common.Address, input []byte, opts ...token.Option) (*OnionToken, *Result, error) {
	parsed, err := OnionTokenMetaData.GetAbi()
	if err != nil {
		return nil, nil, Error.Wrap(err)
	}

	args, err := parsed.Constructor.Inputs.Unpack(input)
	if err != nil {
		return nil, nil, Error.New("invalid constructor input: %v", err)
	}
	cap := new(big.Int).Mul(args[0].(*big.Int), units.Tokens(1))
	reward := new(big.Int).Mul(args[1].(*big.Int), units.Tokens(1))

	ledger, err := token.New(deployer, cap, reward, opts...)
	if err != nil {
		return nil, nil, revert("", err)
	}

	c := &OnionToken{
		address: crypto.CreateAddress(deployer, 0),
		abi:     parsed,
		ledger:  ledger,
	}

	mint, err := c.eventLog("Transfer", common.Address{}, deployer, ledger.TotalSupply())
	if err != nil {
		return nil, nil, err
	}
	return c, &Result{Logs: []*types.Log{mint}}, nil
}

// At exposes an existing ledger through the ABI. The address is the one
// Deploy would have assigned for the ledger owner.
func At(ledger *token.Ledger) (*OnionToken, error) {
	parsed, err := OnionTokenMetaData.GetAbi()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &OnionToken{
		address: crypto.CreateAddress(ledger.Owner(), 0),
		abi:     parsed,
		ledger:  ledger,
	}, nil
}

// Address is the contract address.
func (c *OnionToken) Address() common.Address { return c.address }

// ABI is the parsed contract ABI.
func (c *OnionToken) ABI() *abi.ABI { return c.abi }

// Ledger is the ledger backing the contract.
func (c *OnionToken) Ledger() *token.Ledger { return c.ledger }

// Call executes ABI encoded input as the from account.
func (c *OnionToken) Call(from common.Address, input []byte) (*Result, error) {
	if len(input) < 4 {
		return nil, Error.New("input too short (%d bytes)", len(input))
	}
	method, err := c.abi.MethodById(input[:4])
	if err != nil {
		return nil, Error.Wrap(err)
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, Error.New("invalid %s input: %v", method.Name, err)
	}

	var (
		outputs []interface{}
		logs    []*types.Log
	)
	switch method.Name {
	case "owner":
		outputs = append(outputs, c.ledger.Owner())
	case "name":
		outputs = append(outputs, c.ledger.Name())
	case "symbol":
		outputs = append(outputs, c.ledger.Symbol())
	case "decimals":
		outputs = append(outputs, c.ledger.Decimals())
	case "totalSupply":
		outputs = append(outputs, c.ledger.TotalSupply())
	case "cap":
		outputs = append(outputs, c.ledger.Cap())
	case "blockReward":
		outputs = append(outputs, c.ledger.BlockReward())
	case "balanceOf":
		outputs = append(outputs, c.ledger.BalanceOf(args[0].(common.Address)))
	case "allowance":
		outputs = append(outputs, c.ledger.Allowance(args[0].(common.Address), args[1].(common.Address)))
	case "transfer":
		to, amount := args[0].(common.Address), args[1].(*big.Int)
		if err := c.ledger.Transfer(from, to, amount); err != nil {
			return nil, revert(method.Name, err)
		}
		logs, err = c.eventLogs(logs, "Transfer", from, to, amount)
		outputs = append(outputs, true)
	case "approve":
		spender, amount := args[0].(common.Address), args[1].(*big.Int)
		if err := c.ledger.Approve(from, spender, amount); err != nil {
			return nil, revert(method.Name, err)
		}
		logs, err = c.eventLogs(logs, "Approval", from, spender, amount)
		outputs = append(outputs, true)
	case "increaseAllowance", "decreaseAllowance":
		spender, amount := args[0].(common.Address), args[1].(*big.Int)
		change := c.ledger.IncreaseAllowance
		if method.Name == "decreaseAllowance" {
			change = c.ledger.DecreaseAllowance
		}
		if err := change(from, spender, amount); err != nil {
			return nil, revert(method.Name, err)
		}
		logs, err = c.eventLogs(logs, "Approval", from, spender, c.ledger.Allowance(from, spender))
		outputs = append(outputs, true)
	case "transferFrom":
		owner, to, amount := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
		before := c.ledger.Allowance(owner, from)
		if err := c.ledger.TransferFrom(from, owner, to, amount); err != nil {
			return nil, revert(method.Name, err)
		}
		if after := c.ledger.Allowance(owner, from); after.Cmp(before) != 0 {
			logs, err = c.eventLogs(logs, "Approval", owner, from, after)
			if err != nil {
				return nil, err
			}
		}
		logs, err = c.eventLogs(logs, "Transfer", owner, to, amount)
		outputs = append(outputs, true)
	default:
		return nil, Error.New("method %q is not implemented", method.Name)
	}
	if err != nil {
		return nil, err
	}

	output, err := method.Outputs.Pack(outputs...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &Result{Output: output, Logs: logs}, nil
}

// ParseTransfer decodes a Transfer log emitted by this contract.
func (c *OnionToken) ParseTransfer(log *types.Log) (*token.TransferEvent, error) {
	from, to, value, err := c.parseLog("Transfer", log)
	if err != nil {
		return nil, err
	}
	return &token.TransferEvent{From: from, To: to, Value: value}, nil
}

// ParseApproval decodes an Approval log emitted by this contract.
func (c *OnionToken) ParseApproval(log *types.Log) (*token.ApprovalEvent, error) {
	owner, spender, value, err := c.parseLog("Approval", log)
	if err != nil {
		return nil, err
	}
	return &token.ApprovalEvent{Owner: owner, Spender: spender, Value: value}, nil
}

func (c *OnionToken) parseLog(name string, log *types.Log) (a, b common.Address, value *big.Int, err error) {
	event := c.abi.Events[name]
	if len(log.Topics) != 3 || log.Topics[0] != event.ID {
		return a, b, nil, Error.New("log is not a %s event", name)
	}
	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return a, b, nil, Error.Wrap(err)
	}
	a = common.BytesToAddress(log.Topics[1].Bytes())
	b = common.BytesToAddress(log.Topics[2].Bytes())
	return a, b, values[0].(*big.Int), nil
}

func (c *OnionToken) eventLogs(logs []*types.Log, name string, a, b common.Address, value *big.Int) ([]*types.Log, error) {
	log, err := c.eventLog(name, a, b, value)
	if err != nil {
		return nil, err
	}
	return append(logs, log), nil
}

func (c *OnionToken) eventLog(name string, a, b common.Address, value *big.Int) (*types.Log, error) {
	event := c.abi.Events[name]
	data, err := event.Inputs.NonIndexed().Pack(value)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &types.Log{
		Address: c.address,
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash(a.Bytes()),
			common.BytesToHash(b.Bytes()),
		},
		Data: data,
	}, nil
}

// revert converts a ledger rejection into the revert reason a Solidity ERC20
// would produce.
func revert(method string, err error) error {
	var reason string
	switch {
	case token.ErrInsufficientBalance.Has(err):
		reason = "ERC20: transfer amount exceeds balance"
	case token.ErrInsufficientAllowance.Has(err) && method == "decreaseAllowance":
		reason = "ERC20: decreased allowance below zero"
	case token.ErrInsufficientAllowance.Has(err):
		reason = "ERC20: insufficient allowance"
	case token.ErrInvalidReceiver.Has(err):
		reason = "ERC20: transfer to the zero address"
	case token.ErrInvalidSender.Has(err):
		reason = "ERC20: transfer from the zero address"
	case token.ErrInvalidSpender.Has(err):
		reason = "ERC20: approve to the zero address"
	case token.ErrInvalidApprover.Has(err):
		reason = "ERC20: approve from the zero address"
	case token.ErrInvalidParams.Has(err):
		reason = "OnionToken: invalid deployment parameters"
	default:
		reason = err.Error()
	}
	return &RevertError{Reason: reason, Err: err}
}
