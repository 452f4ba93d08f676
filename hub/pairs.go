package hub

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/cosmos/cosmos-sdk/types/kv"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the store's Pairs { repeated Pair pairs = 1; } and
// Pair { bytes key = 1; bytes value = 2; } messages, the value a /subspace query returns.
const (
	pairsField = protowire.Number(1)
	keyField   = protowire.Number(1)
	valueField = protowire.Number(2)
)

// MarshalPairs encodes pairs the way a store answers a /subspace query
func MarshalPairs(pairs []kv.Pair) []byte {
	var out []byte
	for _, pair := range pairs {
		var inner []byte
		if len(pair.Key) > 0 {
			inner = protowire.AppendTag(inner, keyField, protowire.BytesType)
			inner = protowire.AppendBytes(inner, pair.Key)
		}
		if len(pair.Value) > 0 {
			inner = protowire.AppendTag(inner, valueField, protowire.BytesType)
			inner = protowire.AppendBytes(inner, pair.Value)
		}
		out = protowire.AppendTag(out, pairsField, protowire.BytesType)
		out = protowire.AppendBytes(out, inner)
	}
	return out
}

// UnmarshalPairs decodes a /subspace query value. Unknown fields are skipped.
func UnmarshalPairs(bz []byte) ([]kv.Pair, error) {
	var pairs []kv.Pair
	err := walkFields(bz, func(num protowire.Number, value []byte) error {
		if num != pairsField {
			return nil
		}
		var pair kv.Pair
		err := walkFields(value, func(num protowire.Number, value []byte) error {
			switch num {
			case keyField:
				pair.Key = append([]byte(nil), value...)
			case valueField:
				pair.Value = append([]byte(nil), value...)
			}
			return nil
		})
		if err != nil {
			return errorsmod.Wrapf(err, "pair %d", len(pairs))
		}
		pairs = append(pairs, pair)
		return nil
	})
	return pairs, err
}

// walkFields calls fn with every length-delimited field of a message and skips the rest
func walkFields(bz []byte, fn func(num protowire.Number, value []byte) error) error {
	for len(bz) > 0 {
		num, typ, n := protowire.ConsumeTag(bz)
		if n < 0 {
			return protowire.ParseError(n)
		}
		bz = bz[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, bz)
			if n < 0 {
				return protowire.ParseError(n)
			}
			bz = bz[n:]
			continue
		}
		value, n := protowire.ConsumeBytes(bz)
		if n < 0 {
			return errorsmod.Wrapf(protowire.ParseError(n), "field %d", num)
		}
		if err := fn(num, value); err != nil {
			return err
		}
		bz = bz[n:]
	}
	return nil
}
