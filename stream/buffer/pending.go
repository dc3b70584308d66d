package buffer

import "github.com/cove9988/voltdb/stream/block"

// pendingChain holds blocks that were cut out from under a transaction
// still spanning them: the transaction that opened them hasn't committed
// yet, so none of their bytes can be handed to the TopEnd. The moment the
// spanning transaction commits, every block in the chain becomes safe to
// push, in order, and the chain empties.
//
// There is exactly one writer (the StreamBuffer that owns it) and no
// concurrent access, so a plain append-ordered slice is enough; the
// lock-free structures elsewhere in this codebase solve a problem this
// single-threaded chain doesn't have.
type pendingChain struct {
	blocks []pendingBlock
}

// pendingBlock pairs a parked block with whether it closed out a
// generation — a fact cutCurrentBlock knows at park time but that can
// only reach the TopEnd once the block is actually pushed.
type pendingBlock struct {
	block       *block.StreamBlock
	endOfStream bool
}

func (c *pendingChain) push(b *block.StreamBlock, endOfStream bool) {
	c.blocks = append(c.blocks, pendingBlock{block: b, endOfStream: endOfStream})
}

func (c *pendingChain) empty() bool {
	return len(c.blocks) == 0
}

func (c *pendingChain) drain() []pendingBlock {
	out := c.blocks
	c.blocks = nil
	return out
}

func (c *pendingChain) allocatedBytes() int {
	total := 0
	for _, b := range c.blocks {
		total += b.block.RawLength()
	}
	return total
}
