package remote

import (
	"bytes"
	"fmt"
	"reflect"
	"testing"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	objects := map[string][]byte{
		"aa11":               []byte("first"),
		"bb22":               []byte("second"),
		"cc33.dir":           []byte(`[{"relpath":"f","sum":"aa11"}]`),
		"dd44":               {},
		"ee55longervaluehex": bytes.Repeat([]byte("x"), 1000),
	}

	layers := packLayers(objects)
	if len(layers) != 1 {
		t.Fatalf("small set must fit one layer, got %d", len(layers))
	}

	got, err := unpackLayer(layers[0])
	if err != nil {
		t.Fatalf("unpackLayer: %v", err)
	}
	if !reflect.DeepEqual(got, objects) {
		t.Fatalf("round trip changed objects:\n%v\n%v", got, objects)
	}
}

func TestPackDeterministic(t *testing.T) {
	objects := map[string][]byte{}
	for i := 0; i < 50; i++ {
		objects[fmt.Sprintf("val%02d", i)] = bytes.Repeat([]byte{byte(i)}, 100)
	}

	a := packLayers(objects)
	b := packLayers(objects)
	if len(a) != len(b) {
		t.Fatalf("layer counts differ: %d != %d", len(a), len(b))
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			t.Fatalf("layer %d differs between runs", i)
		}
	}
}

func TestPackSplitsLargeSets(t *testing.T) {
	objects := map[string][]byte{}
	for i := 0; i < 4; i++ {
		objects[fmt.Sprintf("big%d", i)] = make([]byte, layerTargetSize/2+1)
	}

	layers := packLayers(objects)
	if len(layers) < 2 {
		t.Fatalf("oversized set must split, got %d layers", len(layers))
	}

	merged := map[string][]byte{}
	for _, layer := range layers {
		part, err := unpackLayer(layer)
		if err != nil {
			t.Fatalf("unpackLayer: %v", err)
		}
		for v, data := range part {
			merged[v] = data
		}
	}
	if len(merged) != len(objects) {
		t.Fatalf("objects lost across layers: %d != %d", len(merged), len(objects))
	}
}

func TestUnpackRejectsTruncated(t *testing.T) {
	objects := map[string][]byte{"aa11": []byte("payload")}
	layer := packLayers(objects)[0]

	if _, err := unpackLayer(layer[:len(layer)-3]); err == nil {
		t.Fatal("truncated layer must fail")
	}
}
