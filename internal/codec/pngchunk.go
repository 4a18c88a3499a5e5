package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

type pngChunk struct {
	typ  string
	data []byte
}

// readChunks splits a PNG into chunks, verifying CRCs.
func readChunks(b []byte) ([]pngChunk, error) {
	if !bytes.HasPrefix(b, pngSignature) {
		return nil, errors.New("invalid PNG signature")
	}
	b = b[len(pngSignature):]

	var chunks []pngChunk
	for len(b) > 0 {
		if len(b) < 12 {
			return nil, errors.New("truncated chunk header")
		}
		length := binary.BigEndian.Uint32(b[:4])
		if uint64(length)+12 > uint64(len(b)) {
			return nil, fmt.Errorf("chunk length %d exceeds data", length)
		}
		typ := string(b[4:8])
		data := b[8 : 8+length]
		crc := binary.BigEndian.Uint32(b[8+length : 12+length])
		if crc32.ChecksumIEEE(b[4:8+length]) != crc {
			return nil, fmt.Errorf("chunk %s: crc mismatch", typ)
		}
		chunks = append(chunks, pngChunk{typ: typ, data: data})
		b = b[12+length:]
		if typ == "IEND" {
			break
		}
	}
	if len(chunks) == 0 || chunks[0].typ != "IHDR" {
		return nil, errors.New("missing IHDR")
	}
	return chunks, nil
}

func writeChunks(chunks []pngChunk) []byte {
	size := len(pngSignature)
	for _, c := range chunks {
		size += 12 + len(c.data)
	}
	out := make([]byte, 0, size)
	out = append(out, pngSignature...)

	var hdr [8]byte
	for _, c := range chunks {
		binary.BigEndian.PutUint32(hdr[:4], uint32(len(c.data)))
		copy(hdr[4:], c.typ)
		out = append(out, hdr[:]...)
		out = append(out, c.data...)

		crc := crc32.NewIEEE()
		crc.Write(hdr[4:])
		crc.Write(c.data)
		out = binary.BigEndian.AppendUint32(out, crc.Sum32())
	}
	return out
}

// dropChunk reports whether an ancillary chunk carries only metadata and
// can go without changing decoded pixels.
func dropChunk(typ string) bool {
	switch typ {
	case "tEXt", "zTXt", "iTXt", "eXIf", "tIME":
		return true
	default:
		return false
	}
}

// bitDepth returns the IHDR bit depth of a chunk list from readChunks.
func bitDepth(chunks []pngChunk) int {
	if len(chunks[0].data) < 9 {
		return 0
	}
	return int(chunks[0].data[8])
}

// colourChunk reports whether typ affects how decoded samples are
// rendered. These chunks survive re-encoding.
func colourChunk(typ string) bool {
	switch typ {
	case "iCCP", "sRGB", "gAMA", "cHRM":
		return true
	default:
		return false
	}
}

// colourType returns the IHDR colour type, or -1.
func colourType(chunks []pngChunk) int {
	if len(chunks) == 0 || len(chunks[0].data) < 10 {
		return -1
	}
	return int(chunks[0].data[9])
}

// carryColour copies the colour chunks of src into dst right after IHDR.
// dst is returned unchanged if it already has colour chunks of its own.
// An ICC profile only moves between two colour or two greyscale images.
func carryColour(dst, src []pngChunk) []pngChunk {
	if len(dst) == 0 {
		return dst
	}
	for _, c := range dst {
		if colourChunk(c.typ) {
			return dst
		}
	}
	sameModel := colourType(dst)&2 == colourType(src)&2

	var colour []pngChunk
	for _, c := range src {
		if !colourChunk(c.typ) || (c.typ == "iCCP" && !sameModel) {
			continue
		}
		colour = append(colour, c)
	}
	if len(colour) == 0 {
		return dst
	}
	out := make([]pngChunk, 0, len(dst)+len(colour))
	out = append(out, dst[0])
	out = append(out, colour...)
	return append(out, dst[1:]...)
}
