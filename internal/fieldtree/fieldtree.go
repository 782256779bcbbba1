// Package fieldtree models the nested, weakly typed structures decoded from
// the device protocol. Field presence is dynamic and field names drifted
// across firmware versions, so lookups are nil tolerant and alias aware:
// a missing key, a missing sub-block, or a nil tree all report absence
// instead of failing.
package fieldtree

// Tree is one nested block. A nil Tree is a valid empty tree.
type Tree map[string]any

// Sub returns the child block under key, or nil when absent.
func (t Tree) Sub(key string) Tree {
	if t == nil {
		return nil
	}
	switch v := t[key].(type) {
	case Tree:
		return v
	case map[string]any:
		return Tree(v)
	default:
		return nil
	}
}

// List returns the child blocks of a repeated field, or nil when absent.
func (t Tree) List(key string) []Tree {
	if t == nil {
		return nil
	}
	raw, ok := t[key].([]any)
	if !ok {
		return nil
	}
	items := make([]Tree, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case Tree:
			items = append(items, v)
		case map[string]any:
			items = append(items, Tree(v))
		}
	}

	return items
}

// Str returns the string value under key.
func (t Tree) Str(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t[key].(string)
	if !ok || v == "" {
		return "", false
	}

	return v, true
}

// Float returns the value under key coerced to float64. All scalar numeric
// types the decoder or a test fixture may produce are accepted.
func (t Tree) Float(key string) (float64, bool) {
	if t == nil {
		return 0, false
	}

	return coerceFloat(t[key])
}

// Int returns the value under key coerced to int64.
func (t Tree) Int(key string) (int64, bool) {
	if t == nil {
		return 0, false
	}

	return coerceInt(t[key])
}

// Uint32 returns the value under key coerced to uint32. Negative and
// out-of-range values report absence.
func (t Tree) Uint32(key string) (uint32, bool) {
	v, ok := t.Int(key)
	if !ok || v < 0 || v > 0xffffffff {
		return 0, false
	}

	return uint32(v), true
}

// FirstStr returns the first present string among the alias keys, in order.
func (t Tree) FirstStr(keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := t.Str(key); ok {
			return v, true
		}
	}

	return "", false
}

// FirstFloat returns the first present numeric value among the alias keys.
func (t Tree) FirstFloat(keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := t.Float(key); ok {
			return v, true
		}
	}

	return 0, false
}

// FirstInt returns the first present integer value among the alias keys.
func (t Tree) FirstInt(keys ...string) (int64, bool) {
	for _, key := range keys {
		if v, ok := t.Int(key); ok {
			return v, true
		}
	}

	return 0, false
}

func coerceFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func coerceInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > 1<<63-1 {
			return 0, false
		}

		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	default:
		return 0, false
	}
}
