// SPDX-License-Identifier: EPL-2.0

// Package fileview provides chunked random access over track sources.
//
// A Source is anything that can be read at an offset and knows its final
// size: a local file, an in-memory blob, or a Progressive download that is
// still being written. A View caches one block of a Source and exposes
// endian-aware getters relative to absolute file offsets:
//
//	view := fileview.NewView(src)
//	if err := view.ReadBlockOfSizeAt(ctx, 16384, 0, 4); err != nil {
//	    return err
//	}
//	sync := view.Uint32(0, binary.BigEndian)
//
// Reads against a Progressive source block until the requested bytes have
// arrived, the download fails, or the context ends.
package fileview
