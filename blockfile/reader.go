package blockfile

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// ReadFile walks one blk*.dat file's sequence of <magic><size><payload>
// records and decodes each payload into a RawBlock. Reading stops at the
// first MagicSkip sentinel or end of file, whichever comes first; trailing
// zero padding at the tail of a not-yet-full file is expected, not an
// error.
func ReadFile(path string) ([]RawBlock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var blocks []RawBlock
	for {
		var magic [4]byte
		if _, err := io.ReadFull(f, magic[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "reading magic in %s", path)
		}
		if magic == MagicSkip {
			break
		}

		size, err := readUint32LE(f)
		if err != nil {
			return nil, errors.Wrapf(err, "reading payload size in %s", path)
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(f, payload); err != nil {
			return nil, errors.Wrapf(err, "reading payload in %s", path)
		}

		block, err := DecodeBlock(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding block in %s", path)
		}
		blocks = append(blocks, *block)
	}

	return blocks, nil
}

// ReadDirectory reads every blk*.dat file under dataDir, in numeric order
// of the filename's index, and concatenates their decoded blocks. Blocks
// within a single blk*.dat file are not guaranteed to be height-ordered
// (reorgs and out-of-order download leave stale forks interleaved), so
// callers must still order by height/previousHash rather than by file
// position.
func ReadDirectory(dataDir string) ([]RawBlock, error) {
	entries, err := filepath.Glob(filepath.Join(dataDir, "blk*.dat"))
	if err != nil {
		return nil, errors.Wrap(err, "globbing blk*.dat files")
	}
	sort.Strings(entries)

	var all []RawBlock
	for _, path := range entries {
		blocks, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, blocks...)
	}
	return all, nil
}

// IndexedBlock pairs a decoded block with the height its own coinbase
// transaction claims via BIP34, since that is the only height a block
// carries of itself.
type IndexedBlock struct {
	RawBlock
	Height uint64
}

// IndexByHeight links a flat, unordered slice of decoded blocks into
// height order by walking backward from tipHash through each block's
// PreviousHash, mirroring how a full node itself establishes the active
// chain (from its known tip, not by assembling fragments forward from
// genesis). Each visited block's height comes from CoinbaseHeight, not
// from its position in this walk; a mismatch between the two (parent
// height + 1 != child height) is treated as corruption and reported as an
// error, since it means the on-disk files don't actually form a
// contiguous chain.
//
// Blocks present in the scanned set but never reached by the backward
// walk are returned separately as orphans: stale forks left on disk by a
// reorg or by out-of-order download that never became part of the chain
// the live tip settled on.
func IndexByHeight(blocks []RawBlock, tipHash string) (chain []IndexedBlock, orphans []RawBlock, err error) {
	byHash := make(map[string]RawBlock, len(blocks))
	for _, b := range blocks {
		byHash[b.Hash] = b
	}

	visited := make(map[string]bool, len(blocks))
	var reverseChain []IndexedBlock
	var childHeight uint64
	haveChildHeight := false

	current := tipHash
	for {
		b, ok := byHash[current]
		if !ok {
			break
		}
		if visited[current] {
			return nil, nil, errors.Errorf("cycle detected walking back from tip %s at block %s", tipHash, current)
		}
		visited[current] = true

		if len(b.Transactions) == 0 {
			return nil, nil, errors.Errorf("block %s has no coinbase transaction to read a height from", b.Hash)
		}
		height, ok := CoinbaseHeight(b.Transactions[0])
		if !ok {
			return nil, nil, errors.Errorf("block %s has no BIP34 height in its coinbase", b.Hash)
		}
		if haveChildHeight && height+1 != childHeight {
			return nil, nil, errors.Errorf("block %s at height %d does not chain to height %d", b.Hash, height, childHeight)
		}

		reverseChain = append(reverseChain, IndexedBlock{RawBlock: b, Height: height})
		childHeight = height
		haveChildHeight = true
		current = b.Header.PreviousHash
	}

	if len(reverseChain) == 0 {
		return nil, nil, errors.Errorf("tip block %s not present in scanned files", tipHash)
	}

	chain = make([]IndexedBlock, len(reverseChain))
	for i, b := range reverseChain {
		chain[len(reverseChain)-1-i] = b
	}

	for _, b := range blocks {
		if !visited[b.Hash] {
			orphans = append(orphans, b)
		}
	}
	return chain, orphans, nil
}
