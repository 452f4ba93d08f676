package types

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
)

const (
	// ModuleName defines the module name
	ModuleName = "gravity"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// RouterKey defines the module's message routing key
	RouterKey = ModuleName
)

// Store key prefixes
var (
	// ParamsKey stores the module params
	ParamsKey = []byte{0x01}

	// AttestationKeyPrefix indexes attestations by event nonce then claim hash
	AttestationKeyPrefix = []byte{0x02}

	// LastEventNonceByOrchestratorKey is the last event nonce accepted from each orchestrator
	LastEventNonceByOrchestratorKey = []byte{0x03}

	// LastEventBlockHeightByOrchestratorKey is the EVM height of that nonce
	LastEventBlockHeightByOrchestratorKey = []byte{0x04}

	// LastObservedEventNonceKey is the highest observed event nonce
	LastObservedEventNonceKey = []byte{0x05}

	// LastObservedBlockHeightKey pairs hub and EVM heights of the last observation
	LastObservedBlockHeightKey = []byte{0x06}

	// ValsetRequestKey indexes valset requests by nonce
	ValsetRequestKey = []byte{0x07}

	// LatestValsetNonceKey is the nonce of the newest valset request
	LatestValsetNonceKey = []byte{0x08}

	// ValsetConfirmKey indexes valset confirmations by nonce then orchestrator
	ValsetConfirmKey = []byte{0x09}

	// OutgoingTxPoolKey indexes unbatched transfers by id
	OutgoingTxPoolKey = []byte{0x0a}

	// OutgoingTxBatchKey indexes batches by token contract then nonce
	OutgoingTxBatchKey = []byte{0x0b}

	// BatchConfirmKey indexes batch confirmations by token contract, nonce and orchestrator
	BatchConfirmKey = []byte{0x0c}

	// LastTxPoolIDKey is the transfer id counter
	LastTxPoolIDKey = []byte{0x0d}

	// LastBatchNonceByContractKey is the batch nonce counter of each token contract
	LastBatchNonceByContractKey = []byte{0x0e}

	// DelegateKeyByOrchestratorKey stores delegate key records by orchestrator
	DelegateKeyByOrchestratorKey = []byte{0x0f}

	// OrchestratorByValidatorKey indexes orchestrators by validator operator address
	OrchestratorByValidatorKey = []byte{0x10}

	// OrchestratorByEthAddressKey indexes orchestrators by EVM address
	OrchestratorByEthAddressKey = []byte{0x11}

	// ERC20ToDenomKey maps EVM token contracts to hub-originated denoms
	ERC20ToDenomKey = []byte{0x12}

	// DenomToERC20Key is the reverse of ERC20ToDenomKey
	DenomToERC20Key = []byte{0x13}

	// LastObservedValsetKey is the valset most recently reported by the bridge contract
	LastObservedValsetKey = []byte{0x14}

	// ConflictKeyPrefix records claims that disagreed with another claim at the same nonce
	ConflictKeyPrefix = []byte{0x15}
)

func prefixed(prefix []byte, parts ...[]byte) []byte {
	key := make([]byte, len(prefix))
	copy(key, prefix)
	for _, part := range parts {
		key = append(key, part...)
	}
	return key
}

// GetAttestationKeyPrefix returns the prefix of every attestation at an event nonce
func GetAttestationKeyPrefix(eventNonce uint64) []byte {
	return prefixed(AttestationKeyPrefix, sdk.Uint64ToBigEndian(eventNonce))
}

// GetAttestationKey returns the store key for an attestation
func GetAttestationKey(eventNonce uint64, claimHash []byte) []byte {
	return prefixed(AttestationKeyPrefix, sdk.Uint64ToBigEndian(eventNonce), claimHash)
}

// GetLastEventNonceByOrchestratorKey returns the store key for an orchestrator's last event nonce
func GetLastEventNonceByOrchestratorKey(orchestrator string) []byte {
	return prefixed(LastEventNonceByOrchestratorKey, []byte(orchestrator))
}

// GetLastEventBlockHeightByOrchestratorKey returns the store key for an orchestrator's last event height
func GetLastEventBlockHeightByOrchestratorKey(orchestrator string) []byte {
	return prefixed(LastEventBlockHeightByOrchestratorKey, []byte(orchestrator))
}

// GetValsetKey returns the store key for a valset request
func GetValsetKey(nonce uint64) []byte {
	return prefixed(ValsetRequestKey, sdk.Uint64ToBigEndian(nonce))
}

// GetValsetConfirmKeyPrefix returns the prefix of every confirmation of a valset
func GetValsetConfirmKeyPrefix(nonce uint64) []byte {
	return prefixed(ValsetConfirmKey, sdk.Uint64ToBigEndian(nonce))
}

// GetValsetConfirmKey returns the store key for one valset confirmation
func GetValsetConfirmKey(nonce uint64, orchestrator string) []byte {
	return prefixed(ValsetConfirmKey, sdk.Uint64ToBigEndian(nonce), []byte(orchestrator))
}

// GetOutgoingTxPoolKey returns the store key for an unbatched transfer
func GetOutgoingTxPoolKey(id uint64) []byte {
	return prefixed(OutgoingTxPoolKey, sdk.Uint64ToBigEndian(id))
}

// GetOutgoingTxBatchContractPrefix returns the prefix of every batch of a token contract
func GetOutgoingTxBatchContractPrefix(tokenContract string) []byte {
	return prefixed(OutgoingTxBatchKey, []byte(tokenContract), []byte("/"))
}

// GetOutgoingTxBatchKey returns the store key for a batch
func GetOutgoingTxBatchKey(tokenContract string, nonce uint64) []byte {
	return prefixed(GetOutgoingTxBatchContractPrefix(tokenContract), sdk.Uint64ToBigEndian(nonce))
}

// GetBatchConfirmKeyPrefix returns the prefix of every confirmation of a batch
func GetBatchConfirmKeyPrefix(tokenContract string, nonce uint64) []byte {
	return prefixed(BatchConfirmKey, []byte(tokenContract), []byte("/"), sdk.Uint64ToBigEndian(nonce))
}

// GetBatchConfirmKey returns the store key for one batch confirmation
func GetBatchConfirmKey(tokenContract string, nonce uint64, orchestrator string) []byte {
	return prefixed(GetBatchConfirmKeyPrefix(tokenContract, nonce), []byte(orchestrator))
}

// GetLastBatchNonceByContractKey returns the store key of a token contract's batch counter
func GetLastBatchNonceByContractKey(tokenContract string) []byte {
	return prefixed(LastBatchNonceByContractKey, []byte(tokenContract))
}

// GetDelegateKeyByOrchestratorKey returns the store key for a delegate key record
func GetDelegateKeyByOrchestratorKey(orchestrator string) []byte {
	return prefixed(DelegateKeyByOrchestratorKey, []byte(orchestrator))
}

// GetOrchestratorByValidatorKey returns the index key for a validator
func GetOrchestratorByValidatorKey(validator string) []byte {
	return prefixed(OrchestratorByValidatorKey, []byte(validator))
}

// GetOrchestratorByEthAddressKey returns the index key for an EVM address
func GetOrchestratorByEthAddressKey(ethAddress string) []byte {
	return prefixed(OrchestratorByEthAddressKey, []byte(ethAddress))
}

// GetERC20ToDenomKey returns the store key for a token contract mapping
func GetERC20ToDenomKey(tokenContract string) []byte {
	return prefixed(ERC20ToDenomKey, []byte(tokenContract))
}

// GetDenomToERC20Key returns the store key for a denom mapping
func GetDenomToERC20Key(denom string) []byte {
	return prefixed(DenomToERC20Key, []byte(denom))
}

// GetConflictKey returns the store key for a recorded conflict
func GetConflictKey(eventNonce uint64, orchestrator string) []byte {
	return prefixed(ConflictKeyPrefix, sdk.Uint64ToBigEndian(eventNonce), []byte(orchestrator))
}
