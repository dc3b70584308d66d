// Package stream defines the types shared by the transactional export
// stream: the byte-offset and identifier types that travel between a
// partition's StreamBuffer and its TopEnd, plus the TopEnd boundary
// itself.
//
// Nothing in this package touches the row encoding (see stream/tuple),
// the block framing (see stream/block), or the buffering and
// transactional bookkeeping (see stream/buffer). It exists so those three
// packages, plus any TopEnd implementation under stream/topend, can agree
// on vocabulary without importing each other.
package stream
