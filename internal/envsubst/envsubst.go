// Package envsubst resolves the placeholder syntaxes the catalog allows in
// ServerDefinition env values: ${NAME}, ${NAME:-default} (and the := / -
// separator variants), and the strict $env:NAME form.
package envsubst

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/mcporter/mcporter/pkg/mcporter"
)

var (
	bracePattern  = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)((?::?[-=])([^}]*))?\}`)
	envTagPattern = regexp.MustCompile(`^\$env:([A-Za-z_][A-Za-z0-9_]*)$`)
)

// Lookup resolves an environment variable name to its value; ok is false
// when the variable is unset.
type Lookup func(name string) (string, bool)

// OSLookup resolves names against the real process environment.
func OSLookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// Resolve expands every placeholder in s using lookup. If any ${NAME} (no
// default) placeholder is unresolved, it returns a *mcporter.MissingEnvError
// naming the sorted union of every missing name found in s — a single
// string may reference several missing variables and all are reported
// together.
func Resolve(s string, lookup Lookup) (string, error) {
	if m := envTagPattern.FindStringSubmatch(s); m != nil {
		name := m[1]
		v, ok := lookup(name)
		if !ok {
			return "", &mcporter.MissingEnvError{Names: []string{name}}
		}
		return v, nil
	}

	if !strings.Contains(s, "${") {
		return s, nil
	}

	missing := map[string]struct{}{}
	result := bracePattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := bracePattern.FindStringSubmatch(match)
		name := sub[1]
		hasDefault := sub[2] != ""
		def := sub[3]

		v, ok := lookup(name)
		switch {
		case ok && v != "":
			return v
		case ok && v == "" && hasDefault:
			return def
		case !ok && hasDefault:
			return def
		case ok:
			// Set but empty, and no default: keep the empty value.
			return v
		default:
			missing[name] = struct{}{}
			return match
		}
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return "", &mcporter.MissingEnvError{Names: names}
	}

	return result, nil
}

// ResolveAll resolves every value of env against lookup, collecting all
// missing-variable errors across every entry into one sorted, deduplicated
// MissingEnvError rather than failing on the first bad entry.
func ResolveAll(env map[string]string, lookup Lookup) (map[string]string, error) {
	if len(env) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(env))
	missing := map[string]struct{}{}
	for k, v := range env {
		resolved, err := Resolve(v, lookup)
		if err != nil {
			var missErr *mcporter.MissingEnvError
			if ok := asMissingEnv(err, &missErr); ok {
				for _, n := range missErr.Names {
					missing[n] = struct{}{}
				}
				continue
			}
			return nil, err
		}
		out[k] = resolved
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, &mcporter.MissingEnvError{Names: names}
	}

	return out, nil
}

func asMissingEnv(err error, target **mcporter.MissingEnvError) bool {
	if me, ok := err.(*mcporter.MissingEnvError); ok {
		*target = me
		return true
	}
	return false
}
