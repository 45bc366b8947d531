package solana

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real nodes.
type RPCClient interface {
	// GetParsedTransaction fetches a transaction under jsonParsed encoding.
	// A nil result with a nil error means the provider has no (parseable)
	// record for the signature yet.
	GetParsedTransaction(
		ctx context.Context,
		signature solana.Signature,
	) (*ParsedTxResult, error)

	// GetTransaction fetches a transaction under the encoding given in opts
	// (we always ask for base64).
	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// realRPCClient adapts the actual solana-go RPC client to our RPCClient
// interface. One adapter is dialed per configured endpoint.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

// GetParsedTransaction issues getTransaction with jsonParsed encoding through
// the generic RPC call path, decoding into our own DTOs. solana-go's typed
// parsed-mode wrappers hide the per-program payload behind envelope types;
// the normalizer needs the provider's JSON as-is.
func (r *realRPCClient) GetParsedTransaction(
	ctx context.Context,
	signature solana.Signature,
) (*ParsedTxResult, error) {
	maxVersion := uint64(0)
	params := []interface{}{
		signature.String(),
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     rpc.CommitmentConfirmed,
			"maxSupportedTransactionVersion": maxVersion,
		},
	}

	var out *ParsedTxResult
	if err := r.client.RPCCallForInto(ctx, &out, "getTransaction", params); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *realRPCClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	return r.client.GetTransaction(ctx, signature, opts)
}
