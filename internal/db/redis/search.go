package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/coursedex/internal/db"
	"github.com/kailas-cloud/coursedex/internal/domain/search/filter"
)

const defaultVectorField = "vector"

// SearchKNN runs a filtered KNN vector similarity search via FT.SEARCH.
// Entry scores are raw cosine distances, ascending.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, errors.New("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, errors.New("vector is required")
	}
	if q.Limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if q.Filter.AlwaysFalse() {
		return &db.SearchResult{}, nil
	}

	filterStr, err := buildFilter(q.Filter)
	if err != nil {
		return nil, err
	}

	field := q.VectorField
	if field == "" {
		field = defaultVectorField
	}
	scoreField := "__" + field + "_score"

	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", q.Offset+q.Limit, field)
	var queryStr string
	if filterStr != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
	} else {
		queryStr = "*=>" + knnPart
	}

	args := []string{q.IndexName, queryStr}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1))
		args = append(args, q.ReturnFields...)
		args = append(args, scoreField)
	}
	args = append(args,
		"SORTBY", scoreField, "ASC",
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	raw, err := s.search(ctx, args)
	if err != nil {
		return nil, err
	}
	return parseResult(raw, scoreField)
}

// SearchList runs a filtered FT.SEARCH without a vector, optionally sorted.
func (s *Store) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, errors.New("index name is required")
	}
	if q.Limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if q.Filter.AlwaysFalse() {
		return &db.SearchResult{}, nil
	}

	filterStr, err := buildFilter(q.Filter)
	if err != nil {
		return nil, err
	}
	if filterStr == "" {
		filterStr = "*"
	}

	args := []string{q.IndexName, filterStr}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	if q.SortBy != "" {
		dir := "ASC"
		if q.SortDesc {
			dir = "DESC"
		}
		args = append(args, "SORTBY", q.SortBy, dir)
	}
	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	raw, err := s.search(ctx, args)
	if err != nil {
		return nil, err
	}
	return parseResult(raw, "")
}

func (s *Store) search(ctx context.Context, args []string) ([]rueidis.RedisMessage, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index name") {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: %w", db.ErrIndexNotFound, err)}
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return raw, nil
}

// --- Result parsing ---

// parseResult decodes [total, key1, fields1, key2, fields2, ...].
// When scoreField is set its value becomes the entry score.
func parseResult(raw []rueidis.RedisMessage, scoreField string) (*db.SearchResult, error) {
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

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: parseFieldPairs(fields)}
		if scoreField != "" {
			if v, ok := entry.Fields[scoreField]; ok {
				if d, err := strconv.ParseFloat(v, 64); err == nil {
					entry.Score = d
				}
				delete(entry.Fields, scoreField)
			}
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

// buildFilter translates a predicate into an FT.SEARCH pre-filter query.
// Clauses are ANDed by juxtaposition.
func buildFilter(p filter.Predicate) (string, error) {
	clauses := p.Clauses()
	if len(clauses) == 0 {
		return "", nil
	}
	params := p.Params()

	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		part, err := buildClause(c, params[c.Param])
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " "), nil
}

func buildClause(c filter.Clause, value any) (string, error) {
	switch c.Op {
	case filter.OpEq:
		v, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("clause %s: expected string, got %T", c.Field, value)
		}
		return buildTagFilter(string(c.Field), v), nil
	case filter.OpIn:
		vs, ok := value.([]string)
		if !ok {
			return "", fmt.Errorf("clause %s: expected []string, got %T", c.Field, value)
		}
		return buildTagFilter(string(c.Field), vs...), nil
	case filter.OpGte, filter.OpLte:
		v, ok := value.(float64)
		if !ok {
			return "", fmt.Errorf("clause %s: expected float64, got %T", c.Field, value)
		}
		return buildNumericFilter(string(c.Field), c.Op, v), nil
	default:
		return "", fmt.Errorf("clause %s: unsupported operator %q", c.Field, c.Op)
	}
}

func buildTagFilter(key string, values ...string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return fmt.Sprintf("@%s:{%s}", key, strings.Join(escaped, " | "))
}

func buildNumericFilter(key string, op filter.Op, v float64) string {
	bound := strconv.FormatFloat(v, 'g', -1, 64)
	if op == filter.OpGte {
		return fmt.Sprintf("@%s:[%s +inf]", key, bound)
	}
	return fmt.Sprintf("@%s:[-inf %s]", key, bound)
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
	"|", "\\|",
	" ", "\\ ",
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return rueidis.BinaryString(buf)
}
