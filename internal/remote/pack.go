package remote

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// Target uncompressed layer size. Small registries dislike huge single
// layers; many tiny layers waste round trips.
const layerTargetSize = 8 * 1024 * 1024

// packLayers splits artifacts into layers of roughly layerTargetSize.
// Artifacts are taken in sorted hash order so the layer split is
// deterministic for a given object set.
func packLayers(objects map[string][]byte) [][]byte {
	values := make([]string, 0, len(objects))
	for v := range objects {
		values = append(values, v)
	}
	sort.Strings(values)

	var layers [][]byte
	var buf bytes.Buffer
	for _, value := range values {
		writeRecord(&buf, value, objects[value])
		if buf.Len() >= layerTargetSize {
			layers = append(layers, append([]byte(nil), buf.Bytes()...))
			buf.Reset()
		}
	}
	if buf.Len() > 0 {
		layers = append(layers, append([]byte(nil), buf.Bytes()...))
	}
	return layers
}

// Record format: [valueLen u16][value][dataLen u64][data]. Hash values
// vary in length (".dir" suffixed manifests), so lengths are explicit.
func writeRecord(buf *bytes.Buffer, value string, data []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint16(lenBuf[:2], uint16(len(value)))
	buf.Write(lenBuf[:2])
	buf.WriteString(value)
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))
	buf.Write(lenBuf[:])
	buf.Write(data)
}

// unpackLayer decodes one layer back into hash-addressed artifacts.
func unpackLayer(data []byte) (map[string][]byte, error) {
	objects := make(map[string][]byte)
	r := bytes.NewReader(data)

	for r.Len() > 0 {
		var valueLen uint16
		if err := binary.Read(r, binary.BigEndian, &valueLen); err != nil {
			return nil, fmt.Errorf("read value length: %w", err)
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, fmt.Errorf("read value: %w", err)
		}

		var dataLen uint64
		if err := binary.Read(r, binary.BigEndian, &dataLen); err != nil {
			return nil, fmt.Errorf("read data length: %w", err)
		}
		payload := make([]byte, dataLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("read data: %w", err)
		}

		objects[string(value)] = payload
	}
	return objects, nil
}
