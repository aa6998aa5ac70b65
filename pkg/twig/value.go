package twig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Markup is a string that is already safe for output and is never escaped
// again.
type Markup string

// String returns the markup as a plain string.
func (m Markup) String() string {
	return string(m)
}

// Hash is an ordered string-keyed map, the runtime form of hash literals.
type Hash struct {
	keys   []string
	values map[string]any
}

// NewHash creates an empty hash.
func NewHash() *Hash {
	return &Hash{values: make(map[string]any)}
}

// HashFromMap creates a hash from m with keys in sorted order.
func HashFromMap(m map[string]any) *Hash {
	h := NewHash()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Set(k, m[k])
	}
	return h
}

// Set stores value under key, keeping the original position of existing keys.
func (h *Hash) Set(key string, value any) {
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = value
}

// Get returns the value stored under key.
func (h *Hash) Get(key string) (any, bool) {
	v, ok := h.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (h *Hash) Keys() []string {
	return append([]string(nil), h.keys...)
}

// Len returns the number of entries.
func (h *Hash) Len() int {
	return len(h.keys)
}

// Map returns a copy of the hash as a plain map.
func (h *Hash) Map() map[string]any {
	m := make(map[string]any, len(h.keys))
	for _, k := range h.keys {
		m[k] = h.values[k]
	}
	return m
}

// MarshalJSON encodes the hash as an object with keys in insertion order.
func (h *Hash) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range h.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalJSON(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := marshalJSON(h.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalJSON encodes v without HTML escaping.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// pair is one element of an iteration.
type pair struct {
	key   any
	value any
}

// truthy implements Twig truthiness.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != "" && x != "0"
	case Markup:
		return x != "" && x != "0"
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	case *Hash:
		return x.Len() > 0
	case map[string]any:
		return len(x) > 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// toString converts a value to its output form.
func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case Markup:
		return string(x)
	case bool:
		if x {
			return "1"
		}
		return ""
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case []any, *Hash, map[string]any:
		return "Array"
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return "Array"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return formatFloat(rv.Float())
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "INF"
	}
	if math.IsInf(f, -1) {
		return "-INF"
	}
	if math.IsNaN(f) {
		return "NAN"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// toNumber converts v to an int64 when it is integral, otherwise a float64.
func toNumber(v any) (int64, float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, 0, true
	case bool:
		if x {
			return 1, 1, true
		}
		return 0, 0, true
	case int:
		return int64(x), float64(x), true
	case int64:
		return x, float64(x), true
	case float64:
		return int64(x), x, x == math.Trunc(x) && math.Abs(x) < 1<<53
	case string:
		return parseNumeric(x)
	case Markup:
		return parseNumeric(string(x))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return int64(f), f, f == math.Trunc(f)
	}
	return 0, 0, false
}

func parseNumeric(s string) (int64, float64, bool) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, float64(i), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), f, f == math.Trunc(f)
	}
	return 0, 0, false
}

// isNumeric reports whether v is a number or a numeric string.
func isNumeric(v any) bool {
	switch x := v.(type) {
	case nil, bool:
		return false
	case int, int64, float64:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return err == nil
	case Markup:
		_, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return err == nil
	}
	return isNumberKind(v)
}

func isNumberKind(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toInt(v any) int {
	i, f, integral := toNumber(v)
	if !integral {
		return int(f)
	}
	return int(i)
}

func toFloat(v any) float64 {
	_, f, _ := toNumber(v)
	return f
}

// isIntegral reports whether v is an integer value (not a float).
func isIntegral(v any) bool {
	switch v.(type) {
	case int, int64, bool, nil:
		return true
	case float64:
		return false
	case string, Markup:
		_, err := strconv.ParseInt(strings.TrimSpace(toString(v)), 10, 64)
		return err == nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Float32, reflect.Float64:
		return false
	}
	return isNumberKind(v)
}

// length returns the Twig length of a value.
func length(v any) int {
	switch x := v.(type) {
	case nil:
		return 0
	case string:
		return utf8.RuneCountInString(x)
	case Markup:
		return utf8.RuneCountInString(string(x))
	case []any:
		return len(x)
	case *Hash:
		return x.Len()
	case map[string]any:
		return len(x)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len()
	}
	return utf8.RuneCountInString(toString(v))
}

// iterate returns the key/value pairs of an iterable value. Maps without an
// intrinsic order are iterated in sorted key order.
func iterate(v any) ([]pair, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case []any:
		pairs := make([]pair, len(x))
		for i, item := range x {
			pairs[i] = pair{key: int64(i), value: item}
		}
		return pairs, true
	case *Hash:
		pairs := make([]pair, 0, x.Len())
		for _, k := range x.keys {
			pairs = append(pairs, pair{key: k, value: x.values[k]})
		}
		return pairs, true
	case map[string]any:
		return iterate(HashFromMap(x))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		pairs := make([]pair, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			pairs[i] = pair{key: int64(i), value: rv.Index(i).Interface()}
		}
		return pairs, true
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return toString(keys[i].Interface()) < toString(keys[j].Interface())
		})
		pairs := make([]pair, len(keys))
		for i, k := range keys {
			pairs[i] = pair{key: k.Interface(), value: rv.MapIndex(k).Interface()}
		}
		return pairs, true
	}
	return nil, false
}

// isIterable reports whether v can be used as the sequence of a for loop.
func isIterable(v any) bool {
	if v == nil {
		return false
	}
	_, ok := iterate(v)
	return ok
}

// toList flattens the values of an iterable.
func toList(v any) []any {
	pairs, _ := iterate(v)
	list := make([]any, len(pairs))
	for i, p := range pairs {
		list[i] = p.value
	}
	return list
}

// isList reports whether v iterates with sequential integer keys.
func isList(v any) bool {
	switch v.(type) {
	case []any:
		return true
	case *Hash, map[string]any, nil:
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// equals implements loose comparison.
func equals(a, b any) bool {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return true
		}
		other := a
		if a == nil {
			other = b
		}
		return !truthy(other)
	}
	if ab, ok := a.(bool); ok {
		return ab == truthy(b)
	}
	if bb, ok := b.(bool); ok {
		return bb == truthy(a)
	}
	if isNumeric(a) && isNumeric(b) {
		return toFloat(a) == toFloat(b)
	}
	if isIterable(a) || isIterable(b) {
		return reflect.DeepEqual(normalizeForCompare(a), normalizeForCompare(b))
	}
	return toString(a) == toString(b)
}

func normalizeForCompare(v any) any {
	switch x := v.(type) {
	case *Hash:
		return x.Map()
	case []any:
		return x
	}
	return v
}

// compare returns -1, 0 or 1.
func compare(a, b any) int {
	numeric := isNumeric(a) && isNumeric(b)
	if !numeric && (a == nil || b == nil) {
		numeric = isNumeric(a) || isNumeric(b)
	}
	if numeric {
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	sa, sb := toString(a), toString(b)
	return strings.Compare(sa, sb)
}

// contains implements the "in" operator.
func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, toString(needle))
	case Markup:
		return strings.Contains(string(h), toString(needle))
	}
	pairs, ok := iterate(haystack)
	if !ok {
		return false
	}
	for _, p := range pairs {
		if equals(p.value, needle) {
			return true
		}
	}
	return false
}
