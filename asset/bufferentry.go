package asset

import (
	"github.com/mogaika/geoscene_viewer/utils"
)

// bufferEntry tracks every accessor reading one shared source buffer,
// separated by usage. It owns the endian rewrite and the split-and-rebuild
// passes for that buffer.
type bufferEntry struct {
	buffer     *Buffer
	attributes []*Accessor
	indices    []*Accessor
	swapped    *utils.BitVector
}

func newBufferEntry(b *Buffer) *bufferEntry {
	return &bufferEntry{buffer: b}
}

// addAccessor registers an accessor under one usage. The same original
// accessor is recorded at most once per usage even when several primitives
// reference it.
func (e *bufferEntry) addAccessor(a *Accessor, usage Usage) {
	list := &e.attributes
	if usage == UsageIndex {
		list = &e.indices
	}
	for _, known := range *list {
		if known == a {
			return
		}
	}
	*list = append(*list, a)
}

// originals returns the accessor set across both usages, deduplicated by
// original index, in registration order.
func (e *bufferEntry) originals() []*Accessor {
	seen := make(map[int]bool, len(e.attributes)+len(e.indices))
	out := make([]*Accessor, 0, len(e.attributes)+len(e.indices))
	for _, list := range [][]*Accessor{e.attributes, e.indices} {
		for _, a := range list {
			if seen[a.OriginalIndex] {
				continue
			}
			seen[a.OriginalIndex] = true
			out = append(out, a)
		}
	}
	return out
}

// rewriteEndian byte-swaps every component addressed through this buffer.
// The mark vector persists on the entry, so calling this again is a no-op.
func (e *bufferEntry) rewriteEndian() error {
	if e.buffer.Data == nil {
		return nil
	}
	if e.swapped == nil {
		e.swapped = utils.NewBitVector((len(e.buffer.Data) + 1) / 2)
	}
	return swapAccessorBytes(e.buffer.Data, e.originals(), e.swapped)
}

// splitAndRebuild runs the splitter once per usage class and releases the
// source bytes once both passes are done.
func (e *bufferEntry) splitAndRebuild() error {
	src := e.buffer.Data
	if _, err := splitAccessors(src, dedupByOriginal(e.attributes)); err != nil {
		return err
	}
	if _, err := splitAccessors(src, dedupByOriginal(e.indices)); err != nil {
		return err
	}
	e.buffer.Data = nil
	return nil
}

func dedupByOriginal(accs []*Accessor) []*Accessor {
	seen := make(map[int]bool, len(accs))
	out := make([]*Accessor, 0, len(accs))
	for _, a := range accs {
		if seen[a.OriginalIndex] {
			continue
		}
		seen[a.OriginalIndex] = true
		out = append(out, a)
	}
	return out
}
