package types

import errorsmod "cosmossdk.io/errors"

// Codespace for errors shared by the hub module and the orchestrator
const Codespace = "bridge"

var (
	ErrInvalidEvent      = errorsmod.Register(Codespace, 2, "invalid chain event")
	ErrInvalidEthAddress = errorsmod.Register(Codespace, 3, "invalid ethereum address")
	ErrInvalidSignature  = errorsmod.Register(Codespace, 4, "invalid ethereum signature")
	ErrEmptyValset       = errorsmod.Register(Codespace, 5, "empty validator set")
)
