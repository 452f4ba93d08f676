package gravity

import (
	"context"
	"net/http"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/cosmos/cosmos-sdk/client"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/grpc-ecosystem/grpc-gateway/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

var (
	patternParams = runtime.MustPattern(runtime.NewPattern(1, []int{2, 0, 2, 1, 2, 2, 2, 3}, []string{"fx", "gravity", "v1", "params"}, "", runtime.AssumeColonVerbOpt(false)))

	patternValset = runtime.MustPattern(runtime.NewPattern(1, []int{2, 0, 2, 1, 2, 2, 2, 3, 1, 0, 4, 1, 5, 4}, []string{"fx", "gravity", "v1", "valsets", "nonce"}, "", runtime.AssumeColonVerbOpt(false)))

	patternLastEventNonce = runtime.MustPattern(runtime.NewPattern(1, []int{2, 0, 2, 1, 2, 2, 2, 3, 1, 0, 4, 1, 5, 4}, []string{"fx", "gravity", "v1", "last_event_nonce", "orchestrator"}, "", runtime.AssumeColonVerbOpt(false)))

	patternLastObservedBlockHeight = runtime.MustPattern(runtime.NewPattern(1, []int{2, 0, 2, 1, 2, 2, 2, 3}, []string{"fx", "gravity", "v1", "last_observed_block_height"}, "", runtime.AssumeColonVerbOpt(false)))
)

// QueryParamsResponse is served at /fx/gravity/v1/params
type QueryParamsResponse struct {
	Params types.Params `json:"params"`
}

// QueryValsetResponse is served at /fx/gravity/v1/valsets/{nonce}
type QueryValsetResponse struct {
	Valset bridgetypes.Valset `json:"valset"`
}

// QueryLastEventNonceResponse is served at /fx/gravity/v1/last_event_nonce/{orchestrator}
type QueryLastEventNonceResponse struct {
	EventNonce uint64 `json:"event_nonce"`
}

// QueryLastObservedBlockHeightResponse is served at /fx/gravity/v1/last_observed_block_height
type QueryLastObservedBlockHeightResponse struct {
	Height bridgetypes.LastObservedBlockHeight `json:"height"`
}

type gatewayQuery func(ctx context.Context, clientCtx client.Context, pathParams map[string]string) (interface{}, error)

// registerQueryHandlers serves the module store over REST. Values are read with raw
// store queries through clientCtx and written back as amino JSON.
func registerQueryHandlers(clientCtx client.Context, mux *runtime.ServeMux) {
	handle := func(pattern runtime.Pattern, query gatewayQuery) {
		mux.Handle(http.MethodGet, pattern, func(w http.ResponseWriter, req *http.Request, pathParams map[string]string) {
			ctx, cancel := context.WithCancel(req.Context())
			defer cancel()
			_, outboundMarshaler := runtime.MarshalerForRequest(mux, req)

			resp, err := query(ctx, clientCtx, pathParams)
			if err != nil {
				runtime.HTTPError(ctx, mux, outboundMarshaler, w, req, err)
				return
			}
			bz, err := types.ModuleCdc.MarshalJSON(resp)
			if err != nil {
				runtime.HTTPError(ctx, mux, outboundMarshaler, w, req, status.Error(codes.Internal, err.Error()))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(bz)
		})
	}

	handle(patternParams, queryParams)
	handle(patternValset, queryValset)
	handle(patternLastEventNonce, queryLastEventNonce)
	handle(patternLastObservedBlockHeight, queryLastObservedBlockHeight)
}

func storeGet(clientCtx client.Context, key []byte) ([]byte, error) {
	res, err := clientCtx.QueryABCI(abci.RequestQuery{Path: "/store/" + types.StoreKey + "/key", Data: key})
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

func decodeStored(bz []byte, ptr interface{}) error {
	if err := types.ModuleCdc.UnmarshalJSON(bz, ptr); err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return nil
}

func queryParams(_ context.Context, clientCtx client.Context, _ map[string]string) (interface{}, error) {
	bz, err := storeGet(clientCtx, types.ParamsKey)
	if err != nil {
		return nil, err
	}
	resp := QueryParamsResponse{Params: types.DefaultParams()}
	if bz != nil {
		if err := decodeStored(bz, &resp.Params); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func queryValset(_ context.Context, clientCtx client.Context, pathParams map[string]string) (interface{}, error) {
	raw, ok := pathParams["nonce"]
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "missing parameter %s", "nonce")
	}
	nonce, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "type mismatch, parameter: %s, error: %v", "nonce", err)
	}
	bz, err := storeGet(clientCtx, types.GetValsetKey(nonce))
	if err != nil {
		return nil, err
	}
	if bz == nil {
		return nil, status.Errorf(codes.NotFound, "valset %d", nonce)
	}
	var resp QueryValsetResponse
	if err := decodeStored(bz, &resp.Valset); err != nil {
		return nil, err
	}
	return resp, nil
}

func queryLastEventNonce(_ context.Context, clientCtx client.Context, pathParams map[string]string) (interface{}, error) {
	orchestrator, ok := pathParams["orchestrator"]
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "missing parameter %s", "orchestrator")
	}
	if _, err := sdk.AccAddressFromBech32(orchestrator); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "orchestrator: %v", err)
	}
	bz, err := storeGet(clientCtx, types.GetLastEventNonceByOrchestratorKey(orchestrator))
	if err != nil {
		return nil, err
	}
	var resp QueryLastEventNonceResponse
	if len(bz) > 0 {
		resp.EventNonce = sdk.BigEndianToUint64(bz)
	}
	return resp, nil
}

func queryLastObservedBlockHeight(_ context.Context, clientCtx client.Context, _ map[string]string) (interface{}, error) {
	bz, err := storeGet(clientCtx, types.LastObservedBlockHeightKey)
	if err != nil {
		return nil, err
	}
	var resp QueryLastObservedBlockHeightResponse
	if bz != nil {
		if err := decodeStored(bz, &resp.Height); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
