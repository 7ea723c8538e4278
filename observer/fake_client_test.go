package observer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/bitcoinclient"
)

// fakeChain is an in-memory, appendable blockchain backing a fake Client
// for BitcoinProcessor tests, letting tests simulate forks by overwriting
// a suffix of blocks with a different hash/previousHash lineage.
type fakeChain struct {
	blocks  []bitcoinclient.BitcoinBlockModel
	fees    map[string]uint64
	balance uint64
}

func newFakeChain() *fakeChain {
	return &fakeChain{fees: make(map[string]uint64)}
}

// append adds a block at the next height, deriving its PreviousHash from
// the current tip (or "" for the genesis block).
func (c *fakeChain) append(hash string, txs ...bitcoinclient.BitcoinTransaction) {
	var prev string
	if len(c.blocks) > 0 {
		prev = c.blocks[len(c.blocks)-1].Hash
	}
	c.blocks = append(c.blocks, bitcoinclient.BitcoinBlockModel{
		Hash:         hash,
		Height:       uint64(len(c.blocks)),
		PreviousHash: prev,
		Transactions: txs,
	})
}

// reorgAt overwrites the block at height with a new hash, simulating a
// single-block reorg without changing the chain's length (real full nodes
// answer getblockhash/getblock only up to their own live tip, so tests
// that need a live tip shorter than what's locally stored would have to
// model that explicitly; simple same-length replacement covers the common
// "the chain tip changed" case cleanly).
func (c *fakeChain) reorgAt(height uint64, newHash string, txs ...bitcoinclient.BitcoinTransaction) {
	var prev string
	if height > 0 {
		prev = c.blocks[height-1].Hash
	}
	c.blocks[height] = bitcoinclient.BitcoinBlockModel{
		Hash:         newHash,
		Height:       height,
		PreviousHash: prev,
		Transactions: txs,
	}
}

func (c *fakeChain) byHeight(height uint64) (bitcoinclient.BitcoinBlockModel, bool) {
	if height >= uint64(len(c.blocks)) {
		return bitcoinclient.BitcoinBlockModel{}, false
	}
	return c.blocks[height], true
}

func (c *fakeChain) byHash(hash string) (bitcoinclient.BitcoinBlockModel, bool) {
	for _, b := range c.blocks {
		if b.Hash == hash {
			return b, true
		}
	}
	return bitcoinclient.BitcoinBlockModel{}, false
}

// fakeClient implements the observer.Client interface over a fakeChain.
type fakeClient struct {
	chain *fakeChain
}

func (f *fakeClient) GetCurrentBlockHeight(context.Context) (uint64, error) {
	if len(f.chain.blocks) == 0 {
		return 0, errors.New("fake chain is empty")
	}
	return uint64(len(f.chain.blocks) - 1), nil
}

func (f *fakeClient) GetBlockHash(_ context.Context, height uint64) (string, error) {
	b, ok := f.chain.byHeight(height)
	if !ok {
		return "", errors.Errorf("no block at height %d", height)
	}
	return b.Hash, nil
}

func (f *fakeClient) GetBlockInfo(_ context.Context, hash string) (*bitcoinclient.BlockInfo, error) {
	b, ok := f.chain.byHash(hash)
	if !ok {
		return nil, errors.Errorf("no block with hash %s", hash)
	}
	return &bitcoinclient.BlockInfo{Hash: b.Hash, Height: b.Height, PreviousHash: b.PreviousHash}, nil
}

func (f *fakeClient) GetBlockInfoFromHeight(ctx context.Context, height uint64) (*bitcoinclient.BlockInfo, error) {
	hash, err := f.GetBlockHash(ctx, height)
	if err != nil {
		return nil, err
	}
	return f.GetBlockInfo(ctx, hash)
}

func (f *fakeClient) GetBlock(_ context.Context, hash string) (*bitcoinclient.BitcoinBlockModel, error) {
	b, ok := f.chain.byHash(hash)
	if !ok {
		return nil, errors.Errorf("no block with hash %s", hash)
	}
	cp := b
	return &cp, nil
}

func (f *fakeClient) GetBalanceInSatoshis(context.Context) (uint64, error) {
	return f.chain.balance, nil
}

func (f *fakeClient) GetTransactionFeeInSatoshis(_ context.Context, txID string) (uint64, error) {
	fee, ok := f.chain.fees[txID]
	if !ok {
		return 0, errors.Errorf("no fee recorded for transaction %s", txID)
	}
	return fee, nil
}

func (f *fakeClient) CreateSidetreeTransaction(context.Context, []byte, uint64) (*bitcoinclient.UnsignedAnchorTransaction, error) {
	return &bitcoinclient.UnsignedAnchorTransaction{RawTransactionHex: "deadbeef", FeeSatoshis: 1000}, nil
}

func (f *fakeClient) BroadcastSidetreeTransaction(context.Context, string) (string, error) {
	return "broadcast-txid", nil
}
