package keeper

import (
	"bytes"
	"encoding/hex"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/hashicorp/go-metrics"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

// Attest records the claimer's vote for claim. Every orchestrator must deliver event
// nonces contiguously: a nonce at or below its last accepted one is rejected as a
// duplicate and a nonce past the next one as a gap, both without changing state.
func (k Keeper) Attest(ctx sdk.Context, claim types.EthereumClaim) (*types.Attestation, error) {
	orchestrator := claim.GetClaimer()
	delegate, found := k.GetDelegateKeyByOrchestrator(ctx, orchestrator)
	if !found {
		return nil, errorsmod.Wrap(types.ErrUnknownOrchestrator, orchestrator)
	}
	powers, _, err := k.bondedPowers(ctx)
	if err != nil {
		return nil, err
	}
	if _, bonded := powers[delegate.Validator]; !bonded {
		return nil, errorsmod.Wrapf(types.ErrUnknownOrchestrator, "validator %s is not bonded", delegate.Validator)
	}

	nonce := claim.GetEventNonce()
	last := k.GetLastEventNonceByOrchestrator(ctx, orchestrator)
	if nonce <= last {
		return nil, errorsmod.Wrapf(types.ErrEventNonceTooLow, "got %d, expected %d", nonce, last+1)
	}
	if nonce > last+1 {
		return nil, errorsmod.Wrapf(types.ErrEventNonceTooHigh, "got %d, expected %d", nonce, last+1)
	}

	hash := claim.ClaimHash()
	for _, other := range k.GetAttestationsByNonce(ctx, nonce) {
		if bytes.Equal(other.ClaimHash, hash) {
			continue
		}
		k.recordConflict(ctx, types.ConflictRecord{
			EventNonce:    nonce,
			Orchestrator:  orchestrator,
			ClaimHash:     hash,
			ConflictsWith: other.ClaimHash,
			Height:        uint64(ctx.BlockHeight()),
			Rejected:      other.Observed,
		})
		if other.Observed {
			return nil, errorsmod.Wrapf(types.ErrConflictingClaim, "event nonce %d observed as %X", nonce, other.ClaimHash)
		}
	}

	att, found := k.GetAttestation(ctx, nonce, hash)
	if !found {
		att = types.NewAttestation(claim, uint64(ctx.BlockHeight()))
	}
	att.AddVote(delegate.Validator)
	k.SetAttestation(ctx, att)

	k.setLastEventNonceByOrchestrator(ctx, orchestrator, nonce)
	k.setLastEventBlockHeightByOrchestrator(ctx, orchestrator, claim.GetBlockHeight())

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeClaim,
			sdk.NewAttribute(types.AttributeKeyClaimType, claim.GetType().String()),
			sdk.NewAttribute(types.AttributeKeyEventNonce, fmt.Sprintf("%d", nonce)),
			sdk.NewAttribute(types.AttributeKeyClaimHash, hex.EncodeToString(hash)),
			sdk.NewAttribute(types.AttributeKeyOrchestrator, orchestrator),
		),
	)

	k.TryAttestation(ctx, att)
	return att, nil
}

// TryAttestation marks att observed once its voters hold two thirds of the bonded
// power and every earlier event nonce is observed, then applies it and retries the
// next nonce.
func (k Keeper) TryAttestation(ctx sdk.Context, att *types.Attestation) {
	if att.Observed {
		return
	}
	if att.EventNonce != k.GetLastObservedEventNonce(ctx)+1 {
		return
	}

	powers, total, err := k.bondedPowers(ctx)
	if err != nil {
		k.Logger(ctx).Error("could not load bonded validators", "error", err)
		return
	}
	voted := math.ZeroInt()
	for _, validator := range att.Votes {
		voted = voted.AddRaw(powers[validator])
	}
	if !bridgetypes.ThresholdReached(voted, total) {
		return
	}

	att.Observed = true
	att.Height = uint64(ctx.BlockHeight())
	k.SetAttestation(ctx, att)
	k.setLastObservedEventNonce(ctx, att.EventNonce)
	k.SetLastObservedBlockHeight(ctx, att.Claim.GetBlockHeight())

	k.processAttestation(ctx, att)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeObservation,
			sdk.NewAttribute(types.AttributeKeyClaimType, att.Claim.GetType().String()),
			sdk.NewAttribute(types.AttributeKeyEventNonce, fmt.Sprintf("%d", att.EventNonce)),
			sdk.NewAttribute(types.AttributeKeyClaimHash, hex.EncodeToString(att.ClaimHash)),
		),
	)
	metrics.IncrCounterWithLabels(
		[]string{types.ModuleName, "attestation", "observed"},
		1,
		[]metrics.Label{{Name: "claim_type", Value: att.Claim.GetType().String()}},
	)
	k.Logger(ctx).Info("attestation observed",
		"event_nonce", att.EventNonce,
		"claim_type", att.Claim.GetType().String(),
		"votes", len(att.Votes),
	)

	for _, next := range k.GetAttestationsByNonce(ctx, att.EventNonce+1) {
		k.TryAttestation(ctx, next)
		if next.Observed {
			break
		}
	}
}

// TallyAttestations retries the attestations at the next unobserved nonce, for when
// bonded power changed since they were voted on
func (k Keeper) TallyAttestations(ctx sdk.Context) {
	for _, att := range k.GetAttestationsByNonce(ctx, k.GetLastObservedEventNonce(ctx)+1) {
		k.TryAttestation(ctx, att)
		if att.Observed {
			return
		}
	}
}

// processAttestation applies an observed claim in a cached context; a failing
// handler leaves the attestation observed but discards its partial writes
func (k Keeper) processAttestation(ctx sdk.Context, att *types.Attestation) {
	cacheCtx, commit := ctx.CacheContext()
	if err := k.handleClaim(cacheCtx, att.Claim); err != nil {
		k.Logger(ctx).Error("attestation handler failed",
			"event_nonce", att.EventNonce,
			"claim_type", att.Claim.GetType().String(),
			"error", err,
		)
		return
	}
	commit()
}

// GetAttestation returns the attestation for a claim hash at an event nonce
func (k Keeper) GetAttestation(ctx sdk.Context, eventNonce uint64, claimHash []byte) (*types.Attestation, bool) {
	bz := ctx.KVStore(k.storeKey).Get(types.GetAttestationKey(eventNonce, claimHash))
	if bz == nil {
		return nil, false
	}
	var att types.Attestation
	k.cdc.MustUnmarshalJSON(bz, &att)
	return &att, true
}

// SetAttestation stores an attestation
func (k Keeper) SetAttestation(ctx sdk.Context, att *types.Attestation) {
	ctx.KVStore(k.storeKey).Set(types.GetAttestationKey(att.EventNonce, att.ClaimHash), k.cdc.MustMarshalJSON(att))
}

// GetAttestationsByNonce returns every attestation at an event nonce ordered by claim hash
func (k Keeper) GetAttestationsByNonce(ctx sdk.Context, eventNonce uint64) []*types.Attestation {
	iter := storetypes.KVStorePrefixIterator(ctx.KVStore(k.storeKey), types.GetAttestationKeyPrefix(eventNonce))
	defer iter.Close()

	var atts []*types.Attestation
	for ; iter.Valid(); iter.Next() {
		var att types.Attestation
		k.cdc.MustUnmarshalJSON(iter.Value(), &att)
		atts = append(atts, &att)
	}
	return atts
}

// IterateAttestations visits attestations in event nonce order until cb returns true
func (k Keeper) IterateAttestations(ctx sdk.Context, cb func(*types.Attestation) bool) {
	iter := storetypes.KVStorePrefixIterator(ctx.KVStore(k.storeKey), types.AttestationKeyPrefix)
	defer iter.Close()

	for ; iter.Valid(); iter.Next() {
		var att types.Attestation
		k.cdc.MustUnmarshalJSON(iter.Value(), &att)
		if cb(&att) {
			return
		}
	}
}

// GetObservedAttestation returns the observed attestation at an event nonce
func (k Keeper) GetObservedAttestation(ctx sdk.Context, eventNonce uint64) (*types.Attestation, bool) {
	for _, att := range k.GetAttestationsByNonce(ctx, eventNonce) {
		if att.Observed {
			return att, true
		}
	}
	return nil, false
}

func (k Keeper) recordConflict(ctx sdk.Context, record types.ConflictRecord) {
	ctx.KVStore(k.storeKey).Set(types.GetConflictKey(record.EventNonce, record.Orchestrator), k.cdc.MustMarshalJSON(record))

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeConflictingClaim,
			sdk.NewAttribute(types.AttributeKeyEventNonce, fmt.Sprintf("%d", record.EventNonce)),
			sdk.NewAttribute(types.AttributeKeyOrchestrator, record.Orchestrator),
			sdk.NewAttribute(types.AttributeKeyClaimHash, hex.EncodeToString(record.ClaimHash)),
		),
	)
	k.Logger(ctx).Error("conflicting claim",
		"event_nonce", record.EventNonce,
		"orchestrator", record.Orchestrator,
		"claim_hash", hex.EncodeToString(record.ClaimHash),
		"conflicts_with", hex.EncodeToString(record.ConflictsWith),
		"rejected", record.Rejected,
	)
}

// GetConflicts returns every recorded conflicting claim in event nonce order
func (k Keeper) GetConflicts(ctx sdk.Context) []types.ConflictRecord {
	iter := storetypes.KVStorePrefixIterator(ctx.KVStore(k.storeKey), types.ConflictKeyPrefix)
	defer iter.Close()

	var records []types.ConflictRecord
	for ; iter.Valid(); iter.Next() {
		var record types.ConflictRecord
		k.cdc.MustUnmarshalJSON(iter.Value(), &record)
		records = append(records, record)
	}
	return records
}
