package codec

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestOptimized_PixelIdenticalAtEveryLevel(t *testing.T) {
	src := testImage(t, 40, 30)
	o := &Optimized{}
	for level := 0; level <= 6; level++ {
		s := DefaultSettings(LosslessOptimize)
		s.Level = level
		out, err := o.Run(context.Background(), src, s, nil)
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		samePixels(t, src, out.Data)
		if len(out.Data) > len(src.Container) {
			t.Errorf("level %d: output %d larger than container %d", level, len(out.Data), len(src.Container))
		}
	}
}

func TestOptimized_Idempotent(t *testing.T) {
	src := testImage(t, 32, 32)
	s := DefaultSettings(LosslessOptimize)
	s.Level = 5
	a, err := (&Optimized{}).Run(context.Background(), src, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := (&Optimized{}).Run(context.Background(), src, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Error("two runs with identical settings differ")
	}
}

func TestOptimized_StripsTextChunks(t *testing.T) {
	src := testImage(t, 16, 16)
	chunks, err := readChunks(src.Container)
	if err != nil {
		t.Fatal(err)
	}
	// Insert a tEXt chunk right after IHDR.
	withText := append([]pngChunk{chunks[0], {typ: "tEXt", data: []byte("Comment\x00shot on a phone")}}, chunks[1:]...)
	src.Container = writeChunks(withText)

	out, err := (&Optimized{}).Run(context.Background(), src, Settings{Level: 0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := readChunks(out.Data)
	if err != nil {
		t.Fatalf("output chunks: %v", err)
	}
	for _, c := range got {
		if c.typ == "tEXt" {
			t.Fatal("tEXt chunk survived")
		}
	}
	samePixels(t, src, out.Data)
}

func TestReadChunks_Rejects(t *testing.T) {
	if _, err := readChunks([]byte("GIF89a")); err == nil {
		t.Error("accepted non-png")
	}
	src := testImage(t, 4, 4)
	corrupt := append([]byte(nil), src.Container...)
	corrupt[20] ^= 0xff // inside IHDR
	if _, err := readChunks(corrupt); err == nil {
		t.Error("accepted crc mismatch")
	}
}

func TestOptimized_KeepsColourChunks(t *testing.T) {
	src := testImage(t, 16, 16)
	chunks, err := readChunks(src.Container)
	if err != nil {
		t.Fatal(err)
	}
	srgb := pngChunk{typ: "sRGB", data: []byte{0}}
	gama := pngChunk{typ: "gAMA", data: []byte{0, 0, 0xb1, 0x8f}}
	src.Container = writeChunks(append([]pngChunk{chunks[0], srgb, gama}, chunks[1:]...))

	for level := 0; level <= 6; level++ {
		out, err := (&Optimized{}).Run(context.Background(), src, Settings{Level: level}, nil)
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		got, err := readChunks(out.Data)
		if err != nil {
			t.Fatal(err)
		}
		seen := map[string]bool{}
		for _, c := range got {
			seen[c.typ] = true
		}
		if !seen["sRGB"] || !seen["gAMA"] {
			t.Errorf("level %d: colour chunks lost: %v", level, seen)
		}
	}
}

func TestCarryColour(t *testing.T) {
	ihdr := func(colourType byte) pngChunk {
		return pngChunk{typ: "IHDR", data: []byte{0, 0, 0, 1, 0, 0, 0, 1, 8, colourType, 0, 0, 0}}
	}
	idat := pngChunk{typ: "IDAT", data: []byte{1}}
	iccp := pngChunk{typ: "iCCP", data: []byte("p\x00\x00x")}
	gama := pngChunk{typ: "gAMA", data: []byte{0, 0, 0xb1, 0x8f}}
	text := pngChunk{typ: "tEXt", data: []byte("k\x00v")}

	src := []pngChunk{ihdr(6), iccp, gama, text, idat}
	got := carryColour([]pngChunk{ihdr(6), idat}, src)
	var types []string
	for _, c := range got {
		types = append(types, c.typ)
	}
	if want := "IHDR iCCP gAMA IDAT"; strings.Join(types, " ") != want {
		t.Errorf("rgba: got %v, want %s", types, want)
	}

	// A colour profile does not move onto a greyscale image.
	got = carryColour([]pngChunk{ihdr(0), idat}, src)
	types = types[:0]
	for _, c := range got {
		types = append(types, c.typ)
	}
	if want := "IHDR gAMA IDAT"; strings.Join(types, " ") != want {
		t.Errorf("grey: got %v, want %s", types, want)
	}
}
