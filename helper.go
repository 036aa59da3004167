package variconf

import "strings"

// setNestedValue sets a value in a nested map using a dot-notation path.
// It creates intermediate maps as needed. If a segment exists but is not
// a map, it is replaced by a new map.
func setNestedValue(nested map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := nested

	for i := 0; i < len(segments)-1; i++ {
		segment := segments[i]

		next, exists := current[segment]
		if !exists {
			newMap := make(map[string]any)
			current[segment] = newMap
			current = newMap
			continue
		}

		if nextMap, isMap := next.(map[string]any); isMap {
			current = nextMap
		} else {
			newMap := make(map[string]any)
			current[segment] = newMap
			current = newMap
		}
	}

	current[segments[len(segments)-1]] = value
}

// navigateToPath traverses a nested map to reach the specified dotted path.
// Returns nil and false if any segment is absent or not a map.
func navigateToPath(nested map[string]any, path string) (any, bool) {
	if path == "" {
		return nested, true
	}

	current := any(nested)
	for _, segment := range strings.Split(path, ".") {
		currentMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		value, exists := currentMap[segment]
		if !exists {
			return nil, false
		}
		current = value
	}

	return current, true
}

// copyTree deep-copies a config value tree (nested maps and slices;
// scalars are shared).
func copyTree(value any) any {
	switch v := value.(type) {
	case map[string]any:
		dst := make(map[string]any, len(v))
		for key, elem := range v {
			dst[key] = copyTree(elem)
		}
		return dst
	case []any:
		dst := make([]any, len(v))
		for i, elem := range v {
			dst[i] = copyTree(elem)
		}
		return dst
	default:
		return value
	}
}

// isValidKeySegment checks if a single path segment is a valid bare key:
// ASCII letters, digits, underscores and dashes.
func isValidKeySegment(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'

		if !(isLetter || isDigit || r == '_' || r == '-') {
			return false
		}
	}
	return true
}
