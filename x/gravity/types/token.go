package types

import (
	"strings"

	gethcommon "github.com/ethereum/go-ethereum/common"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

// VoucherDenomPrefix prefixes the hub denom of tokens that originated on the EVM chain
const VoucherDenomPrefix = ModuleName

// VoucherDenom returns the hub denom minted for an EVM-originated token contract
func VoucherDenom(tokenContract string) string {
	return VoucherDenomPrefix + gethcommon.HexToAddress(tokenContract).Hex()
}

// ContractFromVoucherDenom returns the token contract of a voucher denom
func ContractFromVoucherDenom(denom string) (string, bool) {
	if !strings.HasPrefix(denom, VoucherDenomPrefix) {
		return "", false
	}
	contract := strings.TrimPrefix(denom, VoucherDenomPrefix)
	if bridgetypes.ValidateEthAddress(contract) != nil {
		return "", false
	}
	return gethcommon.HexToAddress(contract).Hex(), true
}
