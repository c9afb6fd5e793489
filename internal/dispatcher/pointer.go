package dispatcher

import (
	"strconv"
	"strings"
)

// resolvePointer resolves an RFC-6901-style JSON pointer against root, which
// must be built from caller-supplied arguments already decoded into
// map[string]interface{}/[]interface{}/scalar values. An empty pointer
// ("" or "/") resolves to root itself.
func resolvePointer(root interface{}, pointer string) (interface{}, bool) {
	if pointer == "" || pointer == "/" {
		return root, true
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false
	}
	tokens := strings.Split(pointer[1:], "/")
	current := root
	for _, raw := range tokens {
		token := unescapeToken(raw)
		switch node := current.(type) {
		case map[string]interface{}:
			v, ok := node[token]
			if !ok {
				return nil, false
			}
			current = v
		case []interface{}:
			idx, err := strconv.Atoi(token)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func unescapeToken(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	token = strings.ReplaceAll(token, "~0", "~")
	return token
}

// resolveParams applies op.map against callerArgs, producing a flat
// parameter map keyed by primitive parameter name.
func resolveParams(opMap map[string]string, callerArgs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(opMap))
	root := interface{}(callerArgs)
	for param, pointer := range opMap {
		if v, ok := resolvePointer(root, pointer); ok {
			out[param] = v
		}
	}
	return out
}

func requireString(params map[string]interface{}, name string) (string, error) {
	v, ok := params[name]
	if !ok {
		return "", &InvalidArgumentError{Parameter: name, Reason: "missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &InvalidArgumentError{Parameter: name, Reason: "expected a string"}
	}
	return s, nil
}

func optionalString(params map[string]interface{}, name, fallback string) (string, error) {
	v, ok := params[name]
	if !ok {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &InvalidArgumentError{Parameter: name, Reason: "expected a string"}
	}
	return s, nil
}

func requireInt(params map[string]interface{}, name string) (int, error) {
	v, ok := params[name]
	if !ok {
		return 0, &InvalidArgumentError{Parameter: name, Reason: "missing"}
	}
	return toInt(v, name)
}

func optionalInt(params map[string]interface{}, name string, fallback int) (int, error) {
	v, ok := params[name]
	if !ok {
		return fallback, nil
	}
	return toInt(v, name)
}

func toInt(v interface{}, name string) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, &InvalidArgumentError{Parameter: name, Reason: "expected a number"}
	}
}

func requireIntSlice(params map[string]interface{}, name string) ([]int, error) {
	v, ok := params[name]
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: "missing"}
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: "expected an array of numbers"}
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		n, err := toInt(item, name)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func optionalStringSlice(params map[string]interface{}, name string) ([]string, error) {
	v, ok := params[name]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: "expected an array of strings"}
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, &InvalidArgumentError{Parameter: name, Reason: "expected an array of strings"}
		}
		out = append(out, s)
	}
	return out, nil
}

func optionalArray(params map[string]interface{}, name string) ([]interface{}, error) {
	v, ok := params[name]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: "expected an array"}
	}
	return raw, nil
}

func requireObject(params map[string]interface{}, name string) (map[string]interface{}, error) {
	v, ok := params[name]
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: "missing"}
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: "expected an object"}
	}
	return m, nil
}

func optionalObject(params map[string]interface{}, name string) (map[string]interface{}, error) {
	v, ok := params[name]
	if !ok {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: "expected an object"}
	}
	return m, nil
}

func requireObjectSlice(params map[string]interface{}, name string) ([]map[string]interface{}, error) {
	v, ok := params[name]
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: "missing"}
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: "expected an array of objects"}
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, &InvalidArgumentError{Parameter: name, Reason: "expected an array of objects"}
		}
		out = append(out, m)
	}
	return out, nil
}
