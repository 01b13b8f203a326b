package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/phenodex/internal/db"
)

// scoreField is the score attribute FT.SEARCH attaches to KNN hits for the "vector" alias.
const scoreField = "__vector_score"

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
// Entries carry the raw distance reported by the server.
// A K beyond the server's result limit yields db.ErrResultLimitExceeded.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	filterStr := buildFilter(q.Tags)

	knnPart := fmt.Sprintf("[KNN %d @vector $BLOB]", q.K)
	var queryStr string
	if filterStr != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
	} else {
		queryStr = fmt.Sprintf("*=>%s", knnPart)
	}

	args := []string{q.IndexName, queryStr}

	if len(q.ReturnFields) > 0 {
		fields := append([]string{scoreField}, q.ReturnFields...)
		args = append(args, "RETURN", strconv.Itoa(len(fields)))
		args = append(args, fields...)
	}

	args = append(args,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isLimitErr(err) {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: k=%d: %w", db.ErrResultLimitExceeded, q.K, err)}
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseKNNResult(raw)
}

// SearchCount returns the number of documents covered by the index.
// valkey-search does not support bare FT.SEARCH without KNN, so the
// Valkey flavour checks the index with FT.INFO and counts keys under its
// prefix with SCAN.
func (s *Store) SearchCount(ctx context.Context, index string) (int, error) {
	if s.valkey {
		return s.scanCount(ctx, index)
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(index, "*", "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "not found") {
			return 0, db.ErrIndexNotFound
		}
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func (s *Store) scanCount(ctx context.Context, index string) (int, error) {
	exists, err := s.IndexExists(ctx, index)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, db.ErrIndexNotFound
	}
	prefix := indexToKeyPrefix(index)
	keys, err := s.Scan(ctx, prefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan for count: %w", err)
	}
	return len(keys), nil
}

// indexToKeyPrefix converts index name to a SCAN prefix.
// "phenodex:diseases:idx" -> "phenodex:diseases:"
func indexToKeyPrefix(index string) string {
	if strings.HasSuffix(index, ":idx") {
		return index[:len(index)-3]
	}
	return index + ":"
}

// --- Result parsing ---

func parseKNNResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, min(int(total), len(raw)/2))
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		}

		if scoreStr, ok := entry.Fields[scoreField]; ok {
			if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				entry.Distance = d
			}
			delete(entry.Fields, scoreField)
		}

		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter building ---

// buildFilter turns exact TAG matches into an FT.SEARCH pre-filter, keys sorted for stable output.
func buildFilter(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, buildTagFilter(k, tags[k]))
	}
	return strings.Join(parts, " ")
}

func buildTagFilter(key, value string) string {
	escaped := tagEscaper.Replace(value)
	return fmt.Sprintf("@%s:{%s}", key, escaped)
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

// vectorToBytes encodes v as little-endian float32, the FLOAT32 vector field layout.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
