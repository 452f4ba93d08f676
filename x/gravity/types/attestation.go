package types

import (
	"encoding/hex"
	"fmt"
)

// Attestation aggregates the votes of every orchestrator that claimed the same event
type Attestation struct {
	EventNonce uint64        `json:"event_nonce"`
	ClaimHash  []byte        `json:"claim_hash"`
	Observed   bool          `json:"observed"`
	Votes      []string      `json:"votes"`
	Height     uint64        `json:"height"`
	Claim      EthereumClaim `json:"claim"`
}

// NewAttestation creates an attestation with no votes for a claim
func NewAttestation(claim EthereumClaim, height uint64) *Attestation {
	return &Attestation{
		EventNonce: claim.GetEventNonce(),
		ClaimHash:  claim.ClaimHash(),
		Votes:      []string{},
		Height:     height,
		Claim:      claim,
	}
}

// HasVote reports whether validator already voted
func (a *Attestation) HasVote(validator string) bool {
	for _, v := range a.Votes {
		if v == validator {
			return true
		}
	}
	return false
}

// AddVote records validator's vote once; repeated votes are ignored
func (a *Attestation) AddVote(validator string) bool {
	if a.HasVote(validator) {
		return false
	}
	a.Votes = append(a.Votes, validator)
	return true
}

func (a *Attestation) String() string {
	return fmt.Sprintf("Attestation{Nonce: %d, Hash: %s, Observed: %t, Votes: %d}",
		a.EventNonce, hex.EncodeToString(a.ClaimHash), a.Observed, len(a.Votes))
}

// ConflictRecord keeps a claim that disagreed with another claim at the same event nonce
type ConflictRecord struct {
	EventNonce    uint64 `json:"event_nonce"`
	Orchestrator  string `json:"orchestrator"`
	ClaimHash     []byte `json:"claim_hash"`
	ConflictsWith []byte `json:"conflicts_with"`
	Height        uint64 `json:"height"`
	// Rejected is set when the other claim was already observed
	Rejected bool `json:"rejected"`
}

// DelegateKey binds a validator to its orchestrator account and EVM signing address
type DelegateKey struct {
	Validator    string `json:"validator"`
	Orchestrator string `json:"orchestrator"`
	EthAddress   string `json:"eth_address"`
}

// ERC20ToDenom maps a bridged token contract to a hub-originated denom
type ERC20ToDenom struct {
	Erc20 string `json:"erc20"`
	Denom string `json:"denom"`
}

// ContractNonce is the last batch nonce assigned for a token contract
type ContractNonce struct {
	TokenContract string `json:"token_contract"`
	Nonce         uint64 `json:"nonce"`
}
