package twig

import (
	"math"
	"net/url"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

func builtinFilters() map[string]FilterFunc {
	return map[string]FilterFunc{
		"upper":       stringFilter(strings.ToUpper),
		"lower":       stringFilter(strings.ToLower),
		"capitalize":  stringFilter(capitalize),
		"title":       stringFilter(title),
		"trim":        trimFilter,
		"nl2br":       nl2brFilter,
		"length":      lengthFilter,
		"join":        joinFilter,
		"default":     defaultFilter,
		"escape":      escapeFilter,
		"e":           escapeFilter,
		"raw":         rawFilter,
		"json_encode": jsonEncodeFilter,
		"url_encode":  urlEncodeFilter,
		"keys":        keysFilter,
		"first":       firstFilter,
		"last":        lastFilter,
		"reverse":     reverseFilter,
		"abs":         absFilter,
		"merge":       mergeFilter,
		"sort":        sortFilter,
		"slice":       sliceFilter,
		"replace":     replaceFilter,
		"split":       splitFilter,
		"round":       roundFilter,
		"batch":       batchFilter,
	}
}

func stringFilter(fn func(string) string) FilterFunc {
	return func(_ *Call, value any) (any, error) {
		return fn(toString(value)), nil
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func title(s string) string {
	var b strings.Builder
	start := true
	for _, r := range s {
		if start {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
		start = unicode.IsSpace(r) || r == '-'
	}
	return b.String()
}

func trimFilter(call *Call, value any) (any, error) {
	s := toString(value)
	chars := toString(call.Arg(0, "character_mask", " \t\n\r\x00\x0B"))
	switch side := toString(call.Arg(1, "side", "both")); side {
	case "both":
		return strings.Trim(s, chars), nil
	case "left":
		return strings.TrimLeft(s, chars), nil
	case "right":
		return strings.TrimRight(s, chars), nil
	default:
		return nil, call.Errorf("Trimming side must be \"left\", \"right\" or \"both\", got %q", side)
	}
}

func nl2brFilter(_ *Call, value any) (any, error) {
	s := htmlReplacer.Replace(toString(value))
	if m, ok := value.(Markup); ok {
		s = string(m)
	}
	return Markup(strings.ReplaceAll(s, "\n", "<br />\n")), nil
}

func lengthFilter(_ *Call, value any) (any, error) {
	return int64(length(value)), nil
}

func joinFilter(call *Call, value any) (any, error) {
	glue := toString(call.Arg(0, "glue", ""))
	list := toList(value)
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = toString(v)
	}
	if and, ok := call.Arg(1, "and", nil).(string); ok && len(parts) > 1 {
		return strings.Join(parts[:len(parts)-1], glue) + and + parts[len(parts)-1], nil
	}
	return strings.Join(parts, glue), nil
}

func defaultFilter(call *Call, value any) (any, error) {
	if isEmpty(value) {
		return call.Arg(0, "default", ""), nil
	}
	return value, nil
}

func escapeFilter(call *Call, value any) (any, error) {
	strategy := toString(call.Arg(0, "strategy", EscapeHTML))
	out, err := escape(value, strategy)
	if err != nil {
		return nil, call.Errorf("%v", err)
	}
	return out, nil
}

func rawFilter(_ *Call, value any) (any, error) {
	return Markup(toString(value)), nil
}

func jsonEncodeFilter(call *Call, value any) (any, error) {
	data, err := marshalJSON(value)
	if err != nil {
		return nil, call.Errorf("json_encode: %v", err)
	}
	return string(data), nil
}

func urlEncodeFilter(_ *Call, value any) (any, error) {
	if h, ok := value.(*Hash); ok {
		q := url.Values{}
		for _, k := range h.Keys() {
			v, _ := h.Get(k)
			q.Set(k, toString(v))
		}
		return q.Encode(), nil
	}
	return strings.ReplaceAll(url.QueryEscape(toString(value)), "+", "%20"), nil
}

func keysFilter(_ *Call, value any) (any, error) {
	pairs, _ := iterate(value)
	keys := make([]any, len(pairs))
	for i, p := range pairs {
		keys[i] = p.key
	}
	return keys, nil
}

func firstFilter(_ *Call, value any) (any, error) {
	if s, ok := value.(string); ok {
		r, size := utf8.DecodeRuneInString(s)
		if size == 0 {
			return "", nil
		}
		return string(r), nil
	}
	list := toList(value)
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func lastFilter(_ *Call, value any) (any, error) {
	if s, ok := value.(string); ok {
		r, size := utf8.DecodeLastRuneInString(s)
		if size == 0 {
			return "", nil
		}
		return string(r), nil
	}
	list := toList(value)
	if len(list) == 0 {
		return nil, nil
	}
	return list[len(list)-1], nil
}

func reverseFilter(_ *Call, value any) (any, error) {
	switch v := value.(type) {
	case string, Markup:
		runes := []rune(toString(v))
		slices.Reverse(runes)
		return string(runes), nil
	case *Hash:
		out := NewHash()
		keys := v.Keys()
		for i := len(keys) - 1; i >= 0; i-- {
			val, _ := v.Get(keys[i])
			out.Set(keys[i], val)
		}
		return out, nil
	}
	list := toList(value)
	slices.Reverse(list)
	return list, nil
}

func absFilter(_ *Call, value any) (any, error) {
	if isIntegral(value) {
		i := toInt64(value)
		if i < 0 {
			i = -i
		}
		return i, nil
	}
	return math.Abs(toFloat(value)), nil
}

func mergeFilter(call *Call, value any) (any, error) {
	other := call.Arg(0, "arr", nil)
	if isList(value) && (isList(other) || other == nil) {
		return append(toList(value), toList(other)...), nil
	}

	out := NewHash()
	for _, src := range []any{value, other} {
		pairs, ok := iterate(src)
		if !ok {
			return nil, call.Errorf("The merge filter only works with sequences and mappings, got %T", src)
		}
		for _, p := range pairs {
			out.Set(toString(p.key), p.value)
		}
	}
	return out, nil
}

func sortFilter(_ *Call, value any) (any, error) {
	list := toList(value)
	slices.SortStableFunc(list, compare)
	return list, nil
}

func sliceFilter(call *Call, value any) (any, error) {
	start := toInt(call.Arg(0, "start", int64(0)))
	lengthArg := call.Arg(1, "length", nil)

	if s, ok := value.(string); ok {
		runes := []rune(s)
		from, to := sliceBounds(len(runes), start, lengthArg)
		return string(runes[from:to]), nil
	}
	list := toList(value)
	from, to := sliceBounds(len(list), start, lengthArg)
	return list[from:to], nil
}

// sliceBounds computes [from, to) for a start and an optional length, both
// of which may be negative.
func sliceBounds(n, start int, lengthArg any) (int, int) {
	if start < 0 {
		start = max(n+start, 0)
	}
	start = min(start, n)
	end := n
	if lengthArg != nil {
		l := toInt(lengthArg)
		if l < 0 {
			end = max(n+l, start)
		} else {
			end = min(start+l, n)
		}
	}
	return start, end
}

func replaceFilter(call *Call, value any) (any, error) {
	pairs, ok := iterate(call.Arg(0, "from", nil))
	if !ok {
		return nil, call.Errorf("The replace filter expects a mapping")
	}
	args := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		args = append(args, toString(p.key), toString(p.value))
	}
	return strings.NewReplacer(args...).Replace(toString(value)), nil
}

func splitFilter(call *Call, value any) (any, error) {
	s := toString(value)
	delimiter := toString(call.Arg(0, "delimiter", ""))
	limit := toInt(call.Arg(1, "limit", int64(0)))

	var parts []string
	switch {
	case delimiter == "":
		size := max(limit, 1)
		runes := []rune(s)
		for i := 0; i < len(runes); i += size {
			parts = append(parts, string(runes[i:min(i+size, len(runes))]))
		}
	case limit > 0:
		parts = strings.SplitN(s, delimiter, limit)
	default:
		parts = strings.Split(s, delimiter)
		if limit < 0 {
			parts = parts[:max(len(parts)+limit, 0)]
		}
	}
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

func roundFilter(call *Call, value any) (any, error) {
	precision := toInt(call.Arg(0, "precision", int64(0)))
	method := toString(call.Arg(1, "method", "common"))
	scale := math.Pow(10, float64(precision))
	f := toFloat(value) * scale

	switch method {
	case "common":
		f = math.Round(f)
	case "floor":
		f = math.Floor(f)
	case "ceil":
		f = math.Ceil(f)
	default:
		return nil, call.Errorf("The round filter only supports the \"common\", \"ceil\", and \"floor\" methods")
	}
	return f / scale, nil
}

func batchFilter(call *Call, value any) (any, error) {
	size := toInt(call.Arg(0, "size", int64(1)))
	if size < 1 {
		return nil, call.Errorf("The batch size must be positive")
	}
	fill, hasFill := call.Arg(1, "fill", nil), len(call.Args) > 1 || call.Named["fill"] != nil
	list := toList(value)
	var out []any
	for i := 0; i < len(list); i += size {
		chunk := append([]any(nil), list[i:min(i+size, len(list))]...)
		for hasFill && len(chunk) < size {
			chunk = append(chunk, fill)
		}
		out = append(out, chunk)
	}
	return out, nil
}
