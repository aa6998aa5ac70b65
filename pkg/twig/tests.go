package twig

import "reflect"

func builtinTests() map[string]TestFunc {
	return map[string]TestFunc{
		"null":         nullTest,
		"none":         nullTest,
		"empty":        emptyTest,
		"even":         evenTest,
		"odd":          oddTest,
		"iterable":     iterableTest,
		"divisible by": divisibleByTest,
		"same as":      sameAsTest,
		// defined is evaluated by the renderer, which can see undefined
		// variables.
		"defined": func(_ *Call, value any) (bool, error) { return value != nil, nil },
	}
}

func nullTest(_ *Call, value any) (bool, error) {
	return value == nil, nil
}

// isEmpty implements the empty test: null, false, "", and empty sequences or
// mappings. Zero is not empty.
func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	case Markup:
		return v == ""
	case int, int64, float64:
		return false
	}
	if isIterable(value) {
		return length(value) == 0
	}
	return false
}

func emptyTest(_ *Call, value any) (bool, error) {
	return isEmpty(value), nil
}

func evenTest(_ *Call, value any) (bool, error) {
	return toInt64(value)%2 == 0, nil
}

func oddTest(_ *Call, value any) (bool, error) {
	return toInt64(value)%2 != 0, nil
}

func iterableTest(_ *Call, value any) (bool, error) {
	return isIterable(value), nil
}

func divisibleByTest(call *Call, value any) (bool, error) {
	divisor := toInt64(call.Arg(0, "num", int64(0)))
	if divisor == 0 {
		return false, call.Errorf("divisible by 0")
	}
	return toInt64(value)%divisor == 0, nil
}

func sameAsTest(call *Call, value any) (bool, error) {
	other := call.Arg(0, "value", nil)
	if value == nil || other == nil {
		return value == nil && other == nil, nil
	}
	if isNumberKind(value) && isNumberKind(other) {
		return reflect.TypeOf(value) == reflect.TypeOf(other) && toFloat(value) == toFloat(other), nil
	}
	if reflect.TypeOf(value) != reflect.TypeOf(other) {
		return false, nil
	}
	if reflect.TypeOf(value).Comparable() {
		return value == other, nil
	}
	switch rv := reflect.ValueOf(value); rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func:
		return rv.Pointer() == reflect.ValueOf(other).Pointer() && length(value) == length(other), nil
	}
	return false, nil
}
