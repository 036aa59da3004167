package variconf

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// refPattern matches ${...} references inside string values.
var refPattern = regexp.MustCompile(`\$\{([^${}]+)\}`)

// resolver substitutes ${path.to.value} references in a config tree.
// References are looked up against the full tree; a leading dot resolves
// relative to the containing section (one extra dot per parent level) and
// the "env:" prefix reads an environment variable instead.
type resolver struct {
	root     map[string]any
	visiting map[string]bool
}

// resolveTree returns a copy of root with all references substituted.
func resolveTree(root map[string]any) (map[string]any, error) {
	r := &resolver{root: root, visiting: make(map[string]bool)}
	out, err := r.resolveValue(root, "")
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func (r *resolver) resolveValue(value any, path string) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			resolved, err := r.resolveValue(elem, joinPath(path, key))
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			resolved, err := r.resolveValue(elem, path)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case string:
		return r.resolveString(v, path)
	default:
		return value, nil
	}
}

// resolveString substitutes all references in s. A string that consists of
// exactly one reference resolves to the referenced value itself, keeping
// its type; references embedded in longer strings are stringified.
func (r *resolver) resolveString(s, path string) (any, error) {
	match := refPattern.FindStringSubmatch(s)
	if match == nil {
		return s, nil
	}

	if match[0] == s {
		return r.resolveRef(match[1], path)
	}

	var resolveErr error
	result := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		if resolveErr != nil {
			return ref
		}
		value, err := r.resolveRef(ref[2:len(ref)-1], path)
		if err != nil {
			resolveErr = err
			return ref
		}
		return fmt.Sprintf("%v", value)
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	return result, nil
}

func (r *resolver) resolveRef(ref, path string) (any, error) {
	if env, ok := strings.CutPrefix(ref, "env:"); ok {
		value, exists := os.LookupEnv(env)
		if !exists {
			return nil, &InterpolationError{Ref: ref, Cause: fmt.Errorf("%w: environment variable %s is not set", ErrUnresolvedReference, env)}
		}
		return value, nil
	}

	target := absoluteRef(ref, path)
	if r.visiting[target] {
		return nil, &InterpolationError{Ref: ref, Cause: ErrInterpolationCycle}
	}

	value, found := navigateToPath(r.root, target)
	if !found {
		return nil, &InterpolationError{Ref: ref, Cause: fmt.Errorf("%w: no such value %q", ErrUnresolvedReference, target)}
	}
	if value == any(missing) {
		return nil, &InterpolationError{Ref: ref, Cause: fmt.Errorf("%w: %q has no value yet", ErrUnresolvedReference, target)}
	}

	r.visiting[target] = true
	defer delete(r.visiting, target)

	return r.resolveValue(value, target)
}

// absoluteRef converts a possibly-relative reference into an absolute
// dotted path. One leading dot addresses the section containing the value
// at path; each additional dot climbs one level further up.
func absoluteRef(ref, path string) string {
	if !strings.HasPrefix(ref, ".") {
		return ref
	}

	dots := 0
	for dots < len(ref) && ref[dots] == '.' {
		dots++
	}
	remainder := ref[dots:]

	section := strings.Split(path, ".")
	// Drop the leaf name, then one more segment per extra dot.
	drop := dots
	if drop > len(section) {
		drop = len(section)
	}
	section = section[:len(section)-drop]

	if len(section) == 0 {
		return remainder
	}
	return strings.Join(section, ".") + "." + remainder
}
