package types

import (
	"context"

	"cosmossdk.io/math"
)

// MsgSetOrchestratorAddressResponse defines the response for MsgSetOrchestratorAddress
type MsgSetOrchestratorAddressResponse struct{}

// MsgValsetConfirmResponse defines the response for MsgValsetConfirm
type MsgValsetConfirmResponse struct{}

// MsgConfirmBatchResponse defines the response for MsgConfirmBatch
type MsgConfirmBatchResponse struct{}

// MsgSendToEthResponse returns the id assigned to the queued transfer
type MsgSendToEthResponse struct {
	ID uint64 `json:"id"`
}

// MsgCancelSendToEthResponse defines the response for MsgCancelSendToEth
type MsgCancelSendToEthResponse struct{}

// MsgRequestBatchResponse returns the nonce of the new batch
type MsgRequestBatchResponse struct {
	BatchNonce uint64   `json:"batch_nonce"`
	TotalFee   math.Int `json:"total_fee"`
}

// MsgClaimResponse reports the state of the attestation a claim voted for
type MsgClaimResponse struct {
	Observed bool `json:"observed"`
	Votes    int  `json:"votes"`
}

// MsgServer defines the msg service for the gravity module
type MsgServer interface {
	SetOrchestratorAddress(ctx context.Context, msg *MsgSetOrchestratorAddress) (*MsgSetOrchestratorAddressResponse, error)
	ValsetConfirm(ctx context.Context, msg *MsgValsetConfirm) (*MsgValsetConfirmResponse, error)
	ConfirmBatch(ctx context.Context, msg *MsgConfirmBatch) (*MsgConfirmBatchResponse, error)
	SendToEth(ctx context.Context, msg *MsgSendToEth) (*MsgSendToEthResponse, error)
	CancelSendToEth(ctx context.Context, msg *MsgCancelSendToEth) (*MsgCancelSendToEthResponse, error)
	RequestBatch(ctx context.Context, msg *MsgRequestBatch) (*MsgRequestBatchResponse, error)
	DepositClaim(ctx context.Context, msg *MsgDepositClaim) (*MsgClaimResponse, error)
	WithdrawClaim(ctx context.Context, msg *MsgWithdrawClaim) (*MsgClaimResponse, error)
	OriginatedTokenClaim(ctx context.Context, msg *MsgOriginatedTokenClaim) (*MsgClaimResponse, error)
	ValsetUpdatedClaim(ctx context.Context, msg *MsgValsetUpdatedClaim) (*MsgClaimResponse, error)
}
