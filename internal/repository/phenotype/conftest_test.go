package phenotype

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	records map[string]map[string]string
	scanFn  func(ctx context.Context, pattern string) ([]string, error)
	fetchFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	fetches int
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	m.fetches++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, keys)
	}
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		if rec, ok := m.records[k]; ok {
			out[i] = rec
		} else {
			out[i] = map[string]string{}
		}
	}
	return out, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{records: map[string]map[string]string{}}
	return New(ms, Config{Prefix: "phenodex:hp:"}, zap.NewNop()), ms
}

func record(meta string, v ...float32) map[string]string {
	return map[string]string{"_json": meta, "__vector": encode(v)}
}

func encode(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
