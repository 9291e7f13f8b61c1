package asset

import (
	"sort"

	"github.com/pkg/errors"
)

// splitRun is one coalesced extent of the source buffer, placed at
// dstOffset in the packed output.
type splitRun struct {
	srcStart  int
	srcEnd    int
	dstOffset int
	align     int
}

// splitAccessors packs the extents addressed by accs (already deduplicated
// by original index) into a fresh tightly packed Buffer and rebuilds every
// accessor on top of it. Overlapping or abutting extents are coalesced into
// one run, preserving interleaved layouts, and each run is aligned to the
// widest component size it contains.
func splitAccessors(src []byte, accs []*Accessor) (*Buffer, error) {
	if len(accs) == 0 {
		return nil, nil
	}

	type extent struct {
		start, end int
		acc        *Accessor
	}
	extents := make([]extent, len(accs))
	for i, a := range accs {
		start, end := a.ByteExtent()
		if end > len(src) {
			return nil, errors.Wrapf(ErrMalformedAsset, "accessor %d: extent %d exceeds fetched buffer size %d",
				a.OriginalIndex, end, len(src))
		}
		extents[i] = extent{start: start, end: end, acc: a}
	}
	sort.SliceStable(extents, func(i, j int) bool {
		return extents[i].start < extents[j].start
	})

	runs := make([]splitRun, 0, len(extents))
	for _, e := range extents {
		align := componentAlign(e.acc)
		if n := len(runs); n > 0 && e.start <= runs[n-1].srcEnd {
			if e.end > runs[n-1].srcEnd {
				runs[n-1].srcEnd = e.end
			}
			if align > runs[n-1].align {
				runs[n-1].align = align
			}
			continue
		}
		runs = append(runs, splitRun{srcStart: e.start, srcEnd: e.end, align: align})
	}

	cursor := 0
	for i := range runs {
		cursor = alignUp(cursor, runs[i].align)
		runs[i].dstOffset = cursor
		cursor += runs[i].srcEnd - runs[i].srcStart
	}

	out := &Buffer{
		Index:      -1,
		ByteLength: cursor,
		Data:       make([]byte, cursor),
	}
	for _, r := range runs {
		copy(out.Data[r.dstOffset:], src[r.srcStart:r.srcEnd])
	}

	for _, a := range accs {
		start, end := a.ByteExtent()
		r := runs[sort.Search(len(runs), func(i int) bool {
			return runs[i].srcEnd >= end
		})]
		stride := 0
		if a.View != nil {
			stride = a.View.ByteStride
		}
		a.View = &BufferView{
			Buffer:     out,
			ByteOffset: r.dstOffset + (start - r.srcStart),
			ByteLength: end - start,
			ByteStride: stride,
		}
		a.ByteOffset = 0
	}

	return out, nil
}

// componentAlign is the alignment a packed run needs for this accessor:
// its component size, a power of two no larger than 4.
func componentAlign(a *Accessor) int {
	if s := componentSize(a.ComponentType); s > 0 {
		return s
	}
	return 1
}

func alignUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}
