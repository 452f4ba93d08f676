package ethereum

import (
	"bytes"
	"math/big"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

// Bridge contract events and methods the orchestrator uses
const (
	EventSendToFx         = "SendToFxEvent"
	EventBatchExecuted    = "TransactionBatchExecutedEvent"
	EventOriginatedToken  = "FxOriginatedTokenEvent"
	EventValsetUpdated    = "ValsetUpdatedEvent"
	MethodLastValsetNonce = "state_lastValsetNonce"
	MethodLastBatchNonce  = "state_lastBatchNonces"
	MethodUpdateValset    = "updateValset"
	MethodSubmitBatch     = "submitBatch"
)

const bridgeABIJSON = `[
  {"type":"event","name":"SendToFxEvent","anonymous":false,"inputs":[
    {"name":"_tokenContract","type":"address","indexed":true},
    {"name":"_sender","type":"address","indexed":true},
    {"name":"_destination","type":"bytes32","indexed":true},
    {"name":"_targetIBC","type":"bytes32","indexed":false},
    {"name":"_amount","type":"uint256","indexed":false},
    {"name":"_eventNonce","type":"uint256","indexed":false}]},
  {"type":"event","name":"TransactionBatchExecutedEvent","anonymous":false,"inputs":[
    {"name":"_batchNonce","type":"uint256","indexed":true},
    {"name":"_token","type":"address","indexed":true},
    {"name":"_eventNonce","type":"uint256","indexed":false}]},
  {"type":"event","name":"FxOriginatedTokenEvent","anonymous":false,"inputs":[
    {"name":"_tokenContract","type":"address","indexed":true},
    {"name":"_name","type":"string","indexed":false},
    {"name":"_symbol","type":"string","indexed":false},
    {"name":"_decimals","type":"uint8","indexed":false},
    {"name":"_eventNonce","type":"uint256","indexed":false}]},
  {"type":"event","name":"ValsetUpdatedEvent","anonymous":false,"inputs":[
    {"name":"_newValsetNonce","type":"uint256","indexed":true},
    {"name":"_eventNonce","type":"uint256","indexed":false},
    {"name":"_validators","type":"address[]","indexed":false},
    {"name":"_powers","type":"uint256[]","indexed":false}]},
  {"type":"function","name":"state_lastValsetNonce","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"state_lastBatchNonces","stateMutability":"view",
    "inputs":[{"name":"","type":"address"}],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"updateValset","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"_newValidators","type":"address[]"},
    {"name":"_newPowers","type":"uint256[]"},
    {"name":"_newValsetNonce","type":"uint256"},
    {"name":"_currentValidators","type":"address[]"},
    {"name":"_currentPowers","type":"uint256[]"},
    {"name":"_currentValsetNonce","type":"uint256"},
    {"name":"_v","type":"uint8[]"},
    {"name":"_r","type":"bytes32[]"},
    {"name":"_s","type":"bytes32[]"}]},
  {"type":"function","name":"submitBatch","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"_currentValidators","type":"address[]"},
    {"name":"_currentPowers","type":"uint256[]"},
    {"name":"_currentValsetNonce","type":"uint256"},
    {"name":"_v","type":"uint8[]"},
    {"name":"_r","type":"bytes32[]"},
    {"name":"_s","type":"bytes32[]"},
    {"name":"_amounts","type":"uint256[]"},
    {"name":"_destinations","type":"address[]"},
    {"name":"_fees","type":"uint256[]"},
    {"name":"_batchNonce","type":"uint256"},
    {"name":"_tokenContract","type":"address"},
    {"name":"_batchTimeout","type":"uint256"},
    {"name":"_feeReceive","type":"address"}]}
]`

// BridgeABI is the parsed bridge contract interface
var BridgeABI = mustParseABI(bridgeABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EventTopics returns the topic0 of every event the watcher consumes
func EventTopics() []gethcommon.Hash {
	return []gethcommon.Hash{
		BridgeABI.Events[EventSendToFx].ID,
		BridgeABI.Events[EventBatchExecuted].ID,
		BridgeABI.Events[EventOriginatedToken].ID,
		BridgeABI.Events[EventValsetUpdated].ID,
	}
}

// ParseEvent decodes a bridge contract log into a chain event. Values are decoded
// as they are; callers validate the result.
func ParseEvent(l ethtypes.Log) (bridgetypes.ChainEvent, error) {
	if len(l.Topics) == 0 {
		return nil, errorsmod.Wrap(bridgetypes.ErrInvalidEvent, "anonymous log")
	}
	event, err := BridgeABI.EventByID(l.Topics[0])
	if err != nil {
		return nil, errorsmod.Wrapf(bridgetypes.ErrInvalidEvent, "unknown topic %s", l.Topics[0].Hex())
	}
	indexed := 0
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed++
		}
	}
	if len(l.Topics) != indexed+1 {
		return nil, errorsmod.Wrapf(bridgetypes.ErrInvalidEvent, "%s: %d topics", event.Name, len(l.Topics))
	}

	fields := make(map[string]interface{})
	if err := BridgeABI.UnpackIntoMap(fields, event.Name, l.Data); err != nil {
		return nil, errorsmod.Wrapf(bridgetypes.ErrInvalidEvent, "%s: %s", event.Name, err)
	}
	nonce, err := uint64Field(fields, "_eventNonce")
	if err != nil {
		return nil, errorsmod.Wrap(err, event.Name)
	}

	switch event.Name {
	case EventSendToFx:
		amount, _ := fields["_amount"].(*big.Int)
		targetIBC, _ := fields["_targetIBC"].([32]byte)
		if amount == nil {
			return nil, errorsmod.Wrap(bridgetypes.ErrInvalidEvent, "deposit amount")
		}
		return &bridgetypes.DepositEvent{
			EventNonce:    nonce,
			BlockHeight:   l.BlockNumber,
			TokenContract: topicAddress(l.Topics[1]).Hex(),
			Sender:        topicAddress(l.Topics[2]).Hex(),
			Receiver:      sdk.AccAddress(l.Topics[3].Bytes()[12:]).String(),
			TargetIBC:     string(bytes.TrimRight(targetIBC[:], "\x00")),
			Amount:        math.NewIntFromBigInt(amount),
		}, nil

	case EventBatchExecuted:
		batchNonce := l.Topics[1].Big()
		if !batchNonce.IsUint64() {
			return nil, errorsmod.Wrapf(bridgetypes.ErrInvalidEvent, "batch nonce %s", batchNonce)
		}
		return &bridgetypes.WithdrawEvent{
			EventNonce:    nonce,
			BlockHeight:   l.BlockNumber,
			BatchNonce:    batchNonce.Uint64(),
			TokenContract: topicAddress(l.Topics[2]).Hex(),
		}, nil

	case EventOriginatedToken:
		name, _ := fields["_name"].(string)
		symbol, _ := fields["_symbol"].(string)
		decimals, _ := fields["_decimals"].(uint8)
		return &bridgetypes.OriginatedTokenEvent{
			EventNonce:    nonce,
			BlockHeight:   l.BlockNumber,
			TokenContract: topicAddress(l.Topics[1]).Hex(),
			Name:          name,
			Symbol:        symbol,
			Decimals:      uint64(decimals),
		}, nil

	case EventValsetUpdated:
		valsetNonce := l.Topics[1].Big()
		if !valsetNonce.IsUint64() {
			return nil, errorsmod.Wrapf(bridgetypes.ErrInvalidEvent, "valset nonce %s", valsetNonce)
		}
		validators, _ := fields["_validators"].([]gethcommon.Address)
		powers, _ := fields["_powers"].([]*big.Int)
		if len(validators) != len(powers) {
			return nil, errorsmod.Wrapf(bridgetypes.ErrInvalidEvent, "%d validators with %d powers", len(validators), len(powers))
		}
		members := make(bridgetypes.BridgeValidators, len(validators))
		for i := range validators {
			if !powers[i].IsUint64() {
				return nil, errorsmod.Wrapf(bridgetypes.ErrInvalidEvent, "power %s", powers[i])
			}
			members[i] = bridgetypes.BridgeValidator{Power: powers[i].Uint64(), EthAddress: validators[i].Hex()}
		}
		return &bridgetypes.ValsetUpdatedEvent{
			EventNonce:  nonce,
			BlockHeight: l.BlockNumber,
			ValsetNonce: valsetNonce.Uint64(),
			Members:     members,
		}, nil
	}
	return nil, errorsmod.Wrapf(bridgetypes.ErrInvalidEvent, "unhandled event %s", event.Name)
}

func uint64Field(fields map[string]interface{}, name string) (uint64, error) {
	v, ok := fields[name].(*big.Int)
	if !ok || v == nil || !v.IsUint64() {
		return 0, errorsmod.Wrapf(bridgetypes.ErrInvalidEvent, "field %s", name)
	}
	return v.Uint64(), nil
}

func topicAddress(topic gethcommon.Hash) gethcommon.Address {
	return gethcommon.BytesToAddress(topic.Bytes())
}

// splitSignatures turns member aligned signatures into the contract's v, r, s arrays.
// A member without a signature is passed as zeros.
func splitSignatures(sigs []bridgetypes.EthSignature) ([]uint8, [][32]byte, [][32]byte) {
	v := make([]uint8, len(sigs))
	r := make([][32]byte, len(sigs))
	s := make([][32]byte, len(sigs))
	for i, sig := range sigs {
		if len(sig.Signature) != 65 {
			continue
		}
		copy(r[i][:], sig.Signature[:32])
		copy(s[i][:], sig.Signature[32:64])
		v[i] = sig.Signature[64]
		if v[i] < 27 {
			v[i] += 27
		}
	}
	return v, r, s
}

func valsetArrays(v bridgetypes.Valset) ([]gethcommon.Address, []*big.Int, error) {
	addresses := make([]gethcommon.Address, len(v.Members))
	powers := make([]*big.Int, len(v.Members))
	for i, m := range v.Members {
		if err := bridgetypes.ValidateEthAddress(m.EthAddress); err != nil {
			return nil, nil, err
		}
		addresses[i] = gethcommon.HexToAddress(m.EthAddress)
		powers[i] = new(big.Int).SetUint64(m.Power)
	}
	return addresses, powers, nil
}

// PackUpdateValset builds updateValset calldata. sigs must be aligned to current's members.
func PackUpdateValset(current, next bridgetypes.Valset, sigs []bridgetypes.EthSignature) ([]byte, error) {
	if len(sigs) != len(current.Members) {
		return nil, errorsmod.Wrapf(bridgetypes.ErrInvalidSignature, "%d signatures for %d members", len(sigs), len(current.Members))
	}
	newAddresses, newPowers, err := valsetArrays(next)
	if err != nil {
		return nil, err
	}
	curAddresses, curPowers, err := valsetArrays(current)
	if err != nil {
		return nil, err
	}
	v, r, s := splitSignatures(sigs)
	return BridgeABI.Pack(MethodUpdateValset,
		newAddresses, newPowers, new(big.Int).SetUint64(next.Nonce),
		curAddresses, curPowers, new(big.Int).SetUint64(current.Nonce),
		v, r, s,
	)
}

// PackSubmitBatch builds submitBatch calldata. sigs must be aligned to current's members.
func PackSubmitBatch(current bridgetypes.Valset, batch bridgetypes.OutgoingTxBatch, sigs []bridgetypes.EthSignature) ([]byte, error) {
	if len(sigs) != len(current.Members) {
		return nil, errorsmod.Wrapf(bridgetypes.ErrInvalidSignature, "%d signatures for %d members", len(sigs), len(current.Members))
	}
	if err := bridgetypes.ValidateEthAddress(batch.TokenContract); err != nil {
		return nil, err
	}
	curAddresses, curPowers, err := valsetArrays(current)
	if err != nil {
		return nil, err
	}
	amounts := make([]*big.Int, len(batch.Transactions))
	destinations := make([]gethcommon.Address, len(batch.Transactions))
	fees := make([]*big.Int, len(batch.Transactions))
	for i, tx := range batch.Transactions {
		if err := bridgetypes.ValidateEthAddress(tx.DestAddress); err != nil {
			return nil, err
		}
		amounts[i] = tx.Token.Amount.BigInt()
		destinations[i] = gethcommon.HexToAddress(tx.DestAddress)
		fees[i] = tx.Fee.Amount.BigInt()
	}
	feeReceive := gethcommon.Address{}
	if batch.FeeReceive != "" {
		if err := bridgetypes.ValidateEthAddress(batch.FeeReceive); err != nil {
			return nil, err
		}
		feeReceive = gethcommon.HexToAddress(batch.FeeReceive)
	}
	v, r, s := splitSignatures(sigs)
	return BridgeABI.Pack(MethodSubmitBatch,
		curAddresses, curPowers, new(big.Int).SetUint64(current.Nonce),
		v, r, s,
		amounts, destinations, fees,
		new(big.Int).SetUint64(batch.BatchNonce),
		gethcommon.HexToAddress(batch.TokenContract),
		new(big.Int).SetUint64(batch.BatchTimeout),
		feeReceive,
	)
}
