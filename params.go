package storedb

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ParamKind is the bind type inferred from a runtime parameter value.
// Inference is by value, never by schema.
type ParamKind int

const (
	ParamNull ParamKind = iota
	ParamBool
	ParamInt
	ParamText
)

func (k ParamKind) String() string {
	switch k {
	case ParamNull:
		return "null"
	case ParamBool:
		return "bool"
	case ParamInt:
		return "int"
	default:
		return "text"
	}
}

// inferParam maps a runtime value onto the ParamKind tagged union and
// returns the driver-ready value for it. Everything that is not nil, bool
// or integer binds as text.
func inferParam(v any) (ParamKind, any) {
	switch x := v.(type) {
	case nil:
		return ParamNull, nil
	case bool:
		return ParamBool, x
	case int:
		return ParamInt, int64(x)
	case int8:
		return ParamInt, int64(x)
	case int16:
		return ParamInt, int64(x)
	case int32:
		return ParamInt, int64(x)
	case int64:
		return ParamInt, x
	case uint:
		return ParamInt, int64(x)
	case uint8:
		return ParamInt, int64(x)
	case uint16:
		return ParamInt, int64(x)
	case uint32:
		return ParamInt, int64(x)
	case uint64:
		return ParamInt, int64(x)
	case string:
		return ParamText, x
	case []byte:
		return ParamText, string(x)
	default:
		return ParamText, fmt.Sprintf("%v", x)
	}
}

// bindParams turns the caller-facing params value (nil, an ordered []any, or
// a string-keyed map) into positional SQL and a driver argument list.
// List and map forms are never mixed within one call; the translation of a
// map goes through sqlx named-parameter rewriting (:name -> ?).
func bindParams(query string, params any) (string, []any, error) {
	switch p := params.(type) {
	case nil:
		return query, nil, nil
	case []any:
		args := make([]any, len(p))
		for i, v := range p {
			_, args[i] = inferParam(v)
		}
		return query, args, nil
	case map[string]any:
		bound, args, err := sqlx.Named(query, p)
		if err != nil {
			return "", nil, fmt.Errorf("storedb: bind named params: %w", err)
		}
		for i, v := range args {
			_, args[i] = inferParam(v)
		}
		return bound, args, nil
	default:
		return "", nil, fmt.Errorf("storedb: unsupported params type %T (want []any or map[string]any)", params)
	}
}

var sensitiveNameParts = []string{"password", "passwd", "token", "secret", "key", "hash"}

func isSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, part := range sensitiveNameParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// sanitizeParams renders params for logging. Named values whose key looks
// sensitive are replaced with a literal "[REDACTED]"; positional lists are
// reduced to their count since nothing ties a position to a field name.
func sanitizeParams(params any) any {
	switch p := params.(type) {
	case nil:
		return nil
	case []any:
		return fmt.Sprintf("%d positional", len(p))
	case map[string]any:
		out := make(map[string]any, len(p))
		for k, v := range p {
			if isSensitiveName(k) {
				out[k] = "[REDACTED]"
			} else {
				out[k] = v
			}
		}
		return out
	default:
		return fmt.Sprintf("%T", params)
	}
}

// paramCount reports how many values the caller supplied, for log lines that
// must not carry raw values.
func paramCount(params any) int {
	switch p := params.(type) {
	case []any:
		return len(p)
	case map[string]any:
		return len(p)
	default:
		return 0
	}
}
