package asset

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/mogaika/geoscene_viewer/utils"
)

// Buffers arrive little-endian on the wire. On little-endian hosts the
// rewrite pass is skipped entirely; on big-endian hosts every addressed
// component is byte-swapped in place, exactly once per byte group even when
// views alias each other.
var hostLittleEndian = func() bool {
	var probe uint16 = 1
	return *(*byte)(unsafe.Pointer(&probe)) == 1
}()

// swapAccessorBytes swaps the component bytes of every element addressed by
// the accessors. marked tracks 2-byte groups of the buffer (bit k covers
// bytes [2k, 2k+2)); a group already marked is skipped, which makes repeated
// invocations no-ops and handles overlapping views.
func swapAccessorBytes(data []byte, accs []*Accessor, marked *utils.BitVector) error {
	for _, a := range accs {
		csize := componentSize(a.ComponentType)
		if csize == 1 {
			continue
		}
		ncomp := typeComponents(a.Type)
		stride := a.EffectiveStride()
		base := a.View.ByteOffset + a.ByteOffset
		if _, end := a.ByteExtent(); end > len(data) {
			return errors.Wrapf(ErrMalformedAsset, "accessor %d: extent %d exceeds fetched buffer size %d",
				a.OriginalIndex, end, len(data))
		}
		for el := 0; el < a.Count; el++ {
			off := base + el*stride
			for c := 0; c < ncomp; c++ {
				swapComponent(data, off+c*csize, csize, marked)
			}
		}
	}
	return nil
}

func swapComponent(data []byte, off, csize int, marked *utils.BitVector) {
	k := off / 2
	switch csize {
	case 2:
		if marked.TestAndSet(k) {
			return
		}
		data[off], data[off+1] = data[off+1], data[off]
	case 4:
		if marked.Test(k) || marked.Test(k+1) {
			return
		}
		marked.Set(k)
		marked.Set(k + 1)
		data[off], data[off+3] = data[off+3], data[off]
		data[off+1], data[off+2] = data[off+2], data[off+1]
	}
}
