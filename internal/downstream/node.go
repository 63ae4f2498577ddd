package downstream

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// NodeClient issues the gateway's own queries against the downstream node.
type NodeClient struct {
	eth     *ethclient.Client
	timeout time.Duration
}

// DialNode connects to rawURL, reusing httpClient's connection pool when given. Every
// query is bounded by timeout; zero leaves only the caller's context.
func DialNode(ctx context.Context, rawURL string, httpClient *http.Client, timeout time.Duration) (*NodeClient, error) {
	opts := []rpc.ClientOption{}
	if httpClient != nil {
		opts = append(opts, rpc.WithHTTPClient(httpClient))
	}

	client, err := rpc.DialOptions(ctx, rawURL, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial downstream node %s", rawURL)
	}

	return &NodeClient{eth: ethclient.NewClient(client), timeout: timeout}, nil
}

func (n *NodeClient) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if n.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, n.timeout)
}

// PendingNonceAt returns the account's transaction count including pending transactions.
func (n *NodeClient) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	ctx, cancel := n.bound(ctx)
	defer cancel()

	count, err := n.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to query transaction count of %s", addr.Hex())
	}

	return count, nil
}

func (n *NodeClient) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := n.bound(ctx)
	defer cancel()

	id, err := n.eth.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query chain id")
	}

	return id, nil
}

func (n *NodeClient) Close() {
	n.eth.Close()
}
