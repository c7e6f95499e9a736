// Package core synthesizes the blocking OFS API surface from a static
// registry of operation descriptors.
//
// Each descriptor names one remote operation, its ordered parameters, and
// their defaults. A synthesized method resolves positional and keyword
// arguments against the descriptor, opens a call-scoped session, and executes
// the operation through the client's execution bridge.
package core

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Common errors returned when resolving arguments.
var (
	// ErrMissingArgument is returned when a required parameter has no value.
	ErrMissingArgument = errors.New("missing required argument")

	// ErrUnknownArgument is returned for a keyword argument the descriptor
	// does not declare.
	ErrUnknownArgument = errors.New("unknown argument")

	// ErrUnknownOperation is returned when an operation name is not registered.
	ErrUnknownOperation = errors.New("unknown operation")
)

// Descriptor is the static description of one remote operation. Descriptors
// are immutable once registered.
type Descriptor struct {
	// Operation is the registry name, e.g. "get_activities".
	Operation string

	// Path is the endpoint template. Parameters appearing as {name} are
	// substituted into the path; all other non-empty parameters become
	// query parameters.
	Path string

	// Params are the ordered parameter names. Positional arguments map onto
	// them in order.
	Params []string

	// Defaults maps parameter names to their default values. A parameter
	// absent from Defaults is required. A nil default marks an optional
	// parameter that is omitted from the request when unset.
	Defaults map[string]any

	// Description is the human-readable summary surfaced in docs.
	Description string
}

// resolveArgs maps positional and keyword arguments onto the descriptor's
// parameters: positionals in order, keywords override, defaults fill the
// rest. It fails before any remote work begins.
func (d Descriptor) resolveArgs(args []any, kwargs map[string]any) (map[string]any, error) {
	if len(args) > len(d.Params) {
		return nil, fmt.Errorf("operation %s accepts %d arguments (got %d)",
			d.Operation, len(d.Params), len(args))
	}

	resolved := make(map[string]any, len(d.Params))
	for i, v := range args {
		resolved[d.Params[i]] = v
	}

	for name, v := range kwargs {
		if !paramDeclared(d.Params, name) {
			return nil, fmt.Errorf("%w: %q (operation %s)", ErrUnknownArgument, name, d.Operation)
		}
		resolved[name] = v
	}

	for _, p := range d.Params {
		if _, ok := resolved[p]; ok {
			continue
		}
		def, ok := d.Defaults[p]
		if !ok {
			return nil, fmt.Errorf("%w: %q (operation %s)", ErrMissingArgument, p, d.Operation)
		}
		resolved[p] = def
	}

	return resolved, nil
}

// buildRequest renders the endpoint path and query from resolved arguments.
// Parameters named in the path template are substituted; the rest become
// query parameters, except nil and empty-string values, which are omitted.
func (d Descriptor) buildRequest(resolved map[string]any) (string, url.Values, error) {
	path := d.Path
	query := url.Values{}

	for _, p := range d.Params {
		v := resolved[p]
		placeholder := "{" + p + "}"
		if strings.Contains(path, placeholder) {
			if v == nil {
				return "", nil, fmt.Errorf("%w: %q (operation %s)", ErrMissingArgument, p, d.Operation)
			}
			path = strings.ReplaceAll(path, placeholder, stringify(v))
			continue
		}
		if v == nil {
			continue
		}
		s := stringify(v)
		if s == "" {
			continue
		}
		query.Set(p, s)
	}

	return path, query, nil
}

// stringify renders an argument value for use in a path or query.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func paramDeclared(params []string, name string) bool {
	for _, p := range params {
		if p == name {
			return true
		}
	}
	return false
}
