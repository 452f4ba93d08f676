package types

// Gravity module event types
const (
	EventTypeClaim                 = "claim"
	EventTypeObservation           = "observation"
	EventTypeConflictingClaim      = "conflicting_claim"
	EventTypeDepositRejected       = "deposit_rejected"
	EventTypeSetOrchestrator       = "set_orchestrator_address"
	EventTypeValsetRequest         = "valset_request"
	EventTypeValsetConfirm         = "valset_confirm"
	EventTypeSendToEth             = "send_to_eth"
	EventTypeCancelSendToEth       = "cancel_send_to_eth"
	EventTypeOutgoingBatch         = "outgoing_batch"
	EventTypeBatchConfirm          = "batch_confirm"
	EventTypeOutgoingBatchCanceled = "outgoing_batch_canceled"
	EventTypeBatchExecuted         = "batch_executed"
	EventTypeTokenMapped           = "token_mapped"
)

// Gravity module event attribute keys
const (
	AttributeKeyClaimType     = "claim_type"
	AttributeKeyClaimHash     = "claim_hash"
	AttributeKeyEventNonce    = "event_nonce"
	AttributeKeyOrchestrator  = "orchestrator"
	AttributeKeyValidator     = "validator"
	AttributeKeyEthAddress    = "eth_address"
	AttributeKeyValsetNonce   = "valset_nonce"
	AttributeKeyBatchNonce    = "batch_nonce"
	AttributeKeyTokenContract = "token_contract"
	AttributeKeyOutgoingTxID  = "outgoing_tx_id"
	AttributeKeyDenom         = "denom"
	AttributeKeyAmount        = "amount"
	AttributeKeyReceiver      = "receiver"
	AttributeKeyTxCount       = "tx_count"
	AttributeKeyReason        = "reason"
)
