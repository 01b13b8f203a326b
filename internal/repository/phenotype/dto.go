package phenotype

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// recordMeta is the JSON blob stored next to each phenotype vector.
// Older loaders nest the identifying fields one level down under "metadata".
type recordMeta struct {
	OriginalID string      `json:"original_id"`
	Label      *string     `json:"label"`
	Metadata   *recordMeta `json:"metadata"`
}

// parseMeta decodes the metadata blob and returns the phenotype ID and label.
// hasLabel is false when the record carries no label at either level.
func parseMeta(raw string) (id, label string, hasLabel bool, err error) {
	var m recordMeta
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return "", "", false, fmt.Errorf("decode metadata: %w", err)
	}

	src := &m
	if m.OriginalID == "" && m.Metadata != nil {
		src = m.Metadata
	}
	if src.Label != nil {
		return src.OriginalID, *src.Label, true, nil
	}
	return src.OriginalID, "", false, nil
}

// bytesToVector deserializes a binary string (4 bytes per float, little-endian) back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
