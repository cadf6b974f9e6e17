// Package chain reads agent reputation from the on-chain reputation registry.
//
// ContractRegistry is a thin typed binding over the registry's four read-only
// methods. Reader layers the failure policy on top: every call is bounded by a
// timeout and every failure is replaced by a declared default, so callers
// always receive a usable model.OnChainReputation.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ashita-ai/hyoka/internal/model"
)

// ErrInvalidAddress is returned when a string is not a 20-byte hex address.
var ErrInvalidAddress = errors.New("chain: invalid address")

// RegistryABI is the read-only surface of the reputation registry contract.
const RegistryABI = `[
	{"type":"function","name":"getReputation","stateMutability":"view",
	 "inputs":[{"name":"agent","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getFeedback","stateMutability":"view",
	 "inputs":[{"name":"agent","type":"address"}],
	 "outputs":[{"name":"","type":"tuple[]","components":[
		{"name":"from","type":"address"},
		{"name":"score","type":"int8"},
		{"name":"comment","type":"string"},
		{"name":"timestamp","type":"uint256"}]}]},
	{"type":"function","name":"getAgentCount","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getAgentByIndex","stateMutability":"view",
	 "inputs":[{"name":"index","type":"uint256"}],
	 "outputs":[{"name":"","type":"address"}]}
]`

// Registry is the set of registry reads the Reader depends on.
// Implementations must be safe for concurrent use.
type Registry interface {
	Reputation(ctx context.Context, agent common.Address) (*big.Int, error)
	Feedback(ctx context.Context, agent common.Address) ([]model.Feedback, error)
	AgentCount(ctx context.Context) (*big.Int, error)
	AgentByIndex(ctx context.Context, index *big.Int) (common.Address, error)
}

// feedbackTuple mirrors the registry's feedback struct for ABI conversion.
type feedbackTuple struct {
	From      common.Address
	Score     int8
	Comment   string
	Timestamp *big.Int
}

// ContractRegistry implements Registry with go-ethereum contract calls.
type ContractRegistry struct {
	address  common.Address
	contract *bind.BoundContract
	client   *ethclient.Client // nil when constructed over a caller
}

// NewContractRegistry binds the registry at address to an existing caller.
func NewContractRegistry(address common.Address, caller bind.ContractCaller) (*ContractRegistry, error) {
	parsed, err := abi.JSON(strings.NewReader(RegistryABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse registry abi: %w", err)
	}
	return &ContractRegistry{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, caller, nil, nil),
	}, nil
}

// Dial connects to an RPC endpoint and binds the registry at registryAddress.
// Call Close to release the connection.
func Dial(ctx context.Context, rpcURL, registryAddress string) (*ContractRegistry, error) {
	address, err := ParseAddress(registryAddress)
	if err != nil {
		return nil, fmt.Errorf("chain: registry address: %w", err)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	reg, err := NewContractRegistry(address, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	reg.client = client
	return reg, nil
}

// Address returns the bound registry address.
func (r *ContractRegistry) Address() common.Address {
	return r.address
}

// Close releases the RPC connection, if the registry owns one.
func (r *ContractRegistry) Close() {
	if r.client != nil {
		r.client.Close()
	}
}

// Reputation reads getReputation(agent).
func (r *ContractRegistry) Reputation(ctx context.Context, agent common.Address) (*big.Int, error) {
	out, err := r.call(ctx, "getReputation", agent)
	if err != nil {
		return nil, err
	}
	return decodeUint(out, "getReputation")
}

// Feedback reads getFeedback(agent) and converts it to model feedback entries
// in contract order.
func (r *ContractRegistry) Feedback(ctx context.Context, agent common.Address) ([]model.Feedback, error) {
	out, err := r.call(ctx, "getFeedback", agent)
	if err != nil {
		return nil, err
	}
	tuples, err := decodeFeedback(out)
	if err != nil {
		return nil, err
	}
	feedback := make([]model.Feedback, 0, len(tuples))
	for _, t := range tuples {
		feedback = append(feedback, model.Feedback{
			From:      t.From.Hex(),
			Score:     t.Score,
			Comment:   t.Comment,
			Timestamp: bigToInt64(t.Timestamp),
		})
	}
	return feedback, nil
}

// AgentCount reads getAgentCount().
func (r *ContractRegistry) AgentCount(ctx context.Context) (*big.Int, error) {
	out, err := r.call(ctx, "getAgentCount")
	if err != nil {
		return nil, err
	}
	return decodeUint(out, "getAgentCount")
}

// AgentByIndex reads getAgentByIndex(index).
func (r *ContractRegistry) AgentByIndex(ctx context.Context, index *big.Int) (common.Address, error) {
	out, err := r.call(ctx, "getAgentByIndex", index)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("chain: getAgentByIndex: expected 1 output, got %d", len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: getAgentByIndex: unexpected output type %T", out[0])
	}
	return addr, nil
}

func (r *ContractRegistry) call(ctx context.Context, method string, params ...any) ([]any, error) {
	var out []any
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("chain: %s: %w", method, err)
	}
	return out, nil
}

func decodeUint(out []any, method string) (*big.Int, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("chain: %s: expected 1 output, got %d", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("chain: %s: unexpected output type %T", method, out[0])
	}
	return v, nil
}

// decodeFeedback converts the unpacked tuple array. abi.ConvertType panics on
// shape mismatch, which is reported as an error here.
func decodeFeedback(out []any) (tuples []feedbackTuple, err error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("chain: getFeedback: expected 1 output, got %d", len(out))
	}
	defer func() {
		if r := recover(); r != nil {
			tuples = nil
			err = fmt.Errorf("chain: getFeedback: decode: %v", r)
		}
	}()
	converted, ok := abi.ConvertType(out[0], new([]feedbackTuple)).(*[]feedbackTuple)
	if !ok || converted == nil {
		return nil, fmt.Errorf("chain: getFeedback: unexpected output type %T", out[0])
	}
	return *converted, nil
}

func bigToInt64(v *big.Int) int64 {
	if v == nil || !v.IsInt64() || v.Sign() < 0 {
		return 0
	}
	return v.Int64()
}

func bigToUint64(v *big.Int) uint64 {
	if v == nil || v.Sign() < 0 {
		return 0
	}
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}

// ParseAddress validates a hex address string.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}
