package orchestrator

import (
	errorsmod "cosmossdk.io/errors"
	dbm "github.com/cometbft/cometbft-db"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

var (
	lastSeenKey    = []byte{0x01}
	inFlightPrefix = []byte{0x02}
)

// Checkpoint is the last event this orchestrator delivered to the hub
type Checkpoint struct {
	EventNonce  uint64
	BlockHeight uint64
}

// CheckpointStore persists the watcher's progress and in-flight claim markers
type CheckpointStore struct {
	db dbm.DB
}

// OpenCheckpointStore opens the goleveldb store under dir
func OpenCheckpointStore(dir string) (*CheckpointStore, error) {
	db, err := dbm.NewDB("orchestrator", dbm.GoLevelDBBackend, dir)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "open checkpoint store in %s", dir)
	}
	return NewCheckpointStore(db), nil
}

// NewCheckpointStore wraps an open database
func NewCheckpointStore(db dbm.DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

// LastSeen returns the persisted checkpoint, if any
func (s *CheckpointStore) LastSeen() (Checkpoint, bool, error) {
	bz, err := s.db.Get(lastSeenKey)
	if err != nil {
		return Checkpoint{}, false, err
	}
	if len(bz) != 16 {
		return Checkpoint{}, false, nil
	}
	return Checkpoint{
		EventNonce:  sdk.BigEndianToUint64(bz[:8]),
		BlockHeight: sdk.BigEndianToUint64(bz[8:]),
	}, true, nil
}

// SaveLastSeen durably records cp
func (s *CheckpointStore) SaveLastSeen(cp Checkpoint) error {
	bz := append(sdk.Uint64ToBigEndian(cp.EventNonce), sdk.Uint64ToBigEndian(cp.BlockHeight)...)
	return s.db.SetSync(lastSeenKey, bz)
}

func inFlightKey(nonce uint64) []byte {
	return append(append([]byte{}, inFlightPrefix...), sdk.Uint64ToBigEndian(nonce)...)
}

// MarkInFlight records that the claim for nonce is about to be sent
func (s *CheckpointStore) MarkInFlight(nonce uint64, claimHash []byte) error {
	return s.db.SetSync(inFlightKey(nonce), claimHash)
}

// ClearInFlight drops the marker once the hub acknowledged the claim
func (s *CheckpointStore) ClearInFlight(nonce uint64) error {
	return s.db.DeleteSync(inFlightKey(nonce))
}

// InFlight returns the claim hash of every unacknowledged submission by event nonce
func (s *CheckpointStore) InFlight() (map[uint64][]byte, error) {
	iter, err := s.db.Iterator(inFlightPrefix, []byte{inFlightPrefix[0] + 1})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	markers := make(map[uint64][]byte)
	for ; iter.Valid(); iter.Next() {
		nonce := sdk.BigEndianToUint64(iter.Key()[len(inFlightPrefix):])
		markers[nonce] = append([]byte{}, iter.Value()...)
	}
	return markers, iter.Error()
}

// Close closes the database
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
