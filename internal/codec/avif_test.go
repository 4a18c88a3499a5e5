package codec

import (
	"context"
	"testing"
)

func TestAVIFQuantizer(t *testing.T) {
	cases := map[int]int{1: 63, 50: 32, 100: 0}
	for q, want := range cases {
		if got := avifQuantizer(q); got != want {
			t.Errorf("avifQuantizer(%d) = %d, want %d", q, got, want)
		}
	}
	if avifQuantizer(20) <= avifQuantizer(80) {
		t.Error("mapping must be inverse")
	}
}

func TestAVIF_MissingBinary(t *testing.T) {
	a := &AVIFAdapter{Path: "imgpress-definitely-missing-avifenc"}
	_, err := a.Run(context.Background(), testImage(t, 4, 4), DefaultSettings(AVIF), nil)
	if err == nil {
		t.Fatal("expected error without avifenc")
	}
}

func TestAVIF_Encode(t *testing.T) {
	a := &AVIFAdapter{}
	if !a.Available() {
		t.Skip("avifenc not installed")
	}
	res, err := Execute(context.Background(), a, testImage(t, 32, 32), DefaultSettings(AVIF), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Mime != "image/avif" || res.Ratio <= 0 {
		t.Errorf("result: %+v", res)
	}
}
