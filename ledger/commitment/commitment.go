package commitment

import (
	"bytes"

	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/unitrie/common"
	"github.com/lunfardo314/unitrie/immutable"
	"github.com/lunfardo314/unitrie/models/trie_blake2b"
	"github.com/lunfardo314/utxobatch/ledger"
)

// commitment model singleton
var commitmentModel = trie_blake2b.New(common.PathArity16, trie_blake2b.HashSize256)

var identity = []byte("utxobatch pool commitment")

// Snapshot is an in-memory trie with the content of the pool: UTXO -> serialized output.
// The root commits to the whole content of the pool and does not depend on how the pool was built
type Snapshot struct {
	store common.KVReader
	root  common.VCommitment
}

func NewSnapshot(pool *ledger.Pool) *Snapshot {
	store := common.NewInMemoryKVStore()
	emptyRoot := immutable.MustInitRoot(store, commitmentModel, identity)
	trie, err := immutable.NewTrieChained(commitmentModel, store, emptyRoot)
	easyfl.AssertNoError(err)

	pool.ForEach(func(u ledger.UTXO, o *ledger.Output) bool {
		trie.Update(u.Bytes(), o.Bytes())
		return true
	})
	trie = trie.CommitChained()
	return &Snapshot{
		store: store,
		root:  trie.Root(),
	}
}

// Compute returns commitment to the pool
func Compute(pool *ledger.Pool) common.VCommitment {
	return NewSnapshot(pool).Root()
}

func (s *Snapshot) Root() common.VCommitment {
	return s.root
}

func Equal(c1, c2 common.VCommitment) bool {
	if c1 == nil || c2 == nil {
		return c1 == c2
	}
	return bytes.Equal(c1.Bytes(), c2.Bytes())
}

// GetOutput reads the output from the trie
func (s *Snapshot) GetOutput(u ledger.UTXO) (*ledger.Output, bool) {
	trie, err := immutable.NewTrieReader(commitmentModel, s.store, s.root)
	easyfl.AssertNoError(err)
	data := trie.Get(u.Bytes())
	if len(data) == 0 {
		return nil, false
	}
	ret, err := ledger.OutputFromBytes(data)
	easyfl.AssertNoError(err)
	return ret, true
}
