package gravity

import (
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/keeper"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

// OrchestratorNonce is the event nonce progress of one orchestrator
type OrchestratorNonce struct {
	Orchestrator string `json:"orchestrator"`
	EventNonce   uint64 `json:"event_nonce"`
	BlockHeight  uint64 `json:"block_height"`
}

// GenesisState defines the gravity module's genesis state.
type GenesisState struct {
	Params                  types.Params                        `json:"params"`
	LastObservedNonce       uint64                              `json:"last_observed_nonce"`
	LastObservedBlockHeight bridgetypes.LastObservedBlockHeight `json:"last_observed_block_height"`
	LastObservedValset      *bridgetypes.Valset                 `json:"last_observed_valset,omitempty"`
	LastTxPoolID            uint64                              `json:"last_tx_pool_id"`
	DelegateKeys            []types.DelegateKey                 `json:"delegate_keys"`
	OrchestratorNonces      []OrchestratorNonce                 `json:"orchestrator_nonces"`
	Valsets                 []bridgetypes.Valset                `json:"valsets"`
	ValsetConfirms          []types.MsgValsetConfirm            `json:"valset_confirms"`
	Batches                 []*bridgetypes.OutgoingTxBatch      `json:"batches"`
	LastBatchNonces         []types.ContractNonce               `json:"last_batch_nonces"`
	BatchConfirms           []types.MsgConfirmBatch             `json:"batch_confirms"`
	UnbatchedTransfers      []bridgetypes.OutgoingTransferTx    `json:"unbatched_transfers"`
	Attestations            []*types.Attestation                `json:"attestations"`
	Erc20ToDenoms           []types.ERC20ToDenom                `json:"erc20_to_denoms"`
}

// DefaultGenesisState returns the default genesis state
func DefaultGenesisState() *GenesisState {
	return &GenesisState{
		Params: types.DefaultParams(),
	}
}

// ValidateGenesis validates the gravity genesis parameters
func ValidateGenesis(data *GenesisState) error {
	if err := data.Params.Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	for _, key := range data.DelegateKeys {
		if err := bridgetypes.ValidateEthAddress(key.EthAddress); err != nil {
			return fmt.Errorf("delegate key of %s: %w", key.Validator, err)
		}
	}
	for _, att := range data.Attestations {
		if att.Claim == nil {
			return fmt.Errorf("attestation at nonce %d has no claim", att.EventNonce)
		}
		if att.Observed && att.EventNonce > data.LastObservedNonce {
			return fmt.Errorf("observed attestation %d past last observed nonce %d", att.EventNonce, data.LastObservedNonce)
		}
	}
	for _, tx := range data.UnbatchedTransfers {
		if tx.ID > data.LastTxPoolID {
			return fmt.Errorf("transfer id %d past last id %d", tx.ID, data.LastTxPoolID)
		}
	}
	return nil
}

// InitGenesis initializes the gravity module's state from a provided genesis state.
func InitGenesis(ctx sdk.Context, k keeper.Keeper, genState *GenesisState) {
	if err := k.SetParams(ctx, genState.Params); err != nil {
		panic(err)
	}
	k.RestoreObservationState(ctx, genState.LastObservedNonce, genState.LastObservedBlockHeight, genState.LastTxPoolID)
	if genState.LastObservedValset != nil {
		k.SetLastObservedValset(ctx, *genState.LastObservedValset)
	}

	for _, key := range genState.DelegateKeys {
		if err := k.SetDelegateKey(ctx, key); err != nil {
			panic(err)
		}
	}
	for _, n := range genState.OrchestratorNonces {
		k.RestoreOrchestratorNonce(ctx, n.Orchestrator, n.EventNonce, n.BlockHeight)
	}
	for _, valset := range genState.Valsets {
		k.StoreValset(ctx, valset)
	}
	for _, confirm := range genState.ValsetConfirms {
		k.SetValsetConfirm(ctx, confirm)
	}
	for _, batch := range genState.Batches {
		k.StoreBatch(ctx, batch)
	}
	for _, n := range genState.LastBatchNonces {
		k.SetLastBatchNonce(ctx, n.TokenContract, n.Nonce)
	}
	for _, confirm := range genState.BatchConfirms {
		k.SetBatchConfirm(ctx, confirm)
	}
	for _, tx := range genState.UnbatchedTransfers {
		k.RestorePoolTx(ctx, tx)
	}
	for _, att := range genState.Attestations {
		k.SetAttestation(ctx, att)
	}
	for _, mapping := range genState.Erc20ToDenoms {
		if err := k.SetERC20Mapping(ctx, mapping.Erc20, mapping.Denom); err != nil {
			panic(err)
		}
	}
}

// ExportGenesis returns the gravity module's exported genesis.
func ExportGenesis(ctx sdk.Context, k keeper.Keeper) *GenesisState {
	genesis := &GenesisState{
		Params:                  k.GetParams(ctx),
		LastObservedNonce:       k.GetLastObservedEventNonce(ctx),
		LastObservedBlockHeight: k.GetLastObservedBlockHeight(ctx),
		LastTxPoolID:            k.GetLastTxPoolID(ctx),
		DelegateKeys:            k.GetDelegateKeys(ctx),
		Valsets:                 k.GetValsets(ctx),
		Batches:                 k.GetOutgoingTxBatches(ctx),
		LastBatchNonces:         k.GetLastBatchNonces(ctx),
		UnbatchedTransfers:      k.GetUnbatchedTransactions(ctx),
		Erc20ToDenoms:           k.GetERC20ToDenoms(ctx),
	}
	if valset, found := k.GetLastObservedValset(ctx); found {
		genesis.LastObservedValset = &valset
	}
	for _, key := range genesis.DelegateKeys {
		genesis.OrchestratorNonces = append(genesis.OrchestratorNonces, OrchestratorNonce{
			Orchestrator: key.Orchestrator,
			EventNonce:   k.GetLastEventNonceByOrchestrator(ctx, key.Orchestrator),
			BlockHeight:  k.GetLastEventBlockHeightByOrchestrator(ctx, key.Orchestrator),
		})
	}
	for _, valset := range genesis.Valsets {
		genesis.ValsetConfirms = append(genesis.ValsetConfirms, k.GetValsetConfirms(ctx, valset.Nonce)...)
	}
	for _, batch := range genesis.Batches {
		genesis.BatchConfirms = append(genesis.BatchConfirms, k.GetBatchConfirms(ctx, batch.TokenContract, batch.BatchNonce)...)
	}
	k.IterateAttestations(ctx, func(att *types.Attestation) bool {
		genesis.Attestations = append(genesis.Attestations, att)
		return false
	})
	return genesis
}
