package table

import (
	"strconv"
	"strings"
)

// InferKind picks the narrowest kind that every non-empty value parses as,
// trying int, then bool, then float, and falling back to string. A column
// with no non-empty values is KindNull.
//
// Temporal columns are not inferred here; they stay strings until the date
// preprocessor converts them.
func InferKind(values []string) Kind {
	var nonEmpty int
	allInt, allBool, allFloat := true, true, true
	for _, v := range values {
		if v == "" {
			continue
		}
		nonEmpty++
		if allInt && !isInt(v) {
			allInt = false
		}
		if allBool && !isBool(v) {
			allBool = false
		}
		if allFloat && !isFloat(v) {
			allFloat = false
		}
		if !allInt && !allBool && !allFloat {
			return KindString
		}
	}
	switch {
	case nonEmpty == 0:
		return KindNull
	case allInt:
		return KindInt
	case allBool:
		return KindBool
	case allFloat:
		return KindFloat
	default:
		return KindString
	}
}

// Convert parses s according to k. Empty strings are null. Values that do not
// parse are returned unchanged as strings.
func Convert(k Kind, s string) any {
	if s == "" {
		return nil
	}
	switch k {
	case KindInt:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	case KindFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case KindBool:
		switch strings.ToLower(s) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return s
}

// isInt requires a signed base-10 integer that fits in int64.
func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// isBool accepts the literal spellings MetaKaggle exports; 0/1 stay ints.
func isBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false":
		return true
	default:
		return false
	}
}

// isFloat accepts decimal or scientific notation. Integers qualify too so a
// column mixing "3" and "3.5" becomes float.
func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
