package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// EndBlocker runs the gravity housekeeping at the end of every block
func (k Keeper) EndBlocker(ctx sdk.Context) error {
	// bonded power may have moved since the pending attestations were voted on
	k.TallyAttestations(ctx)
	k.createValsetRequestIfNeeded(ctx)
	k.cancelTimedOutBatches(ctx)
	k.pruneValsets(ctx)
	return nil
}
