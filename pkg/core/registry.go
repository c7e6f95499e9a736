package core

import (
	"fmt"
	"sort"
)

// Registry holds the static operation descriptors. It is populated once at
// construction and read-only afterwards.
type Registry struct {
	byName map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Descriptor)}
}

// Register adds a descriptor. Duplicate operation names are rejected.
func (r *Registry) Register(d Descriptor) error {
	if d.Operation == "" {
		return fmt.Errorf("descriptor has no operation name")
	}
	if d.Path == "" {
		return fmt.Errorf("descriptor %s has no path", d.Operation)
	}
	if _, exists := r.byName[d.Operation]; exists {
		return fmt.Errorf("operation %s already registered", d.Operation)
	}
	r.byName[d.Operation] = d
	return nil
}

// Lookup returns the descriptor for an operation name.
func (r *Registry) Lookup(operation string) (Descriptor, bool) {
	d, ok := r.byName[operation]
	return d, ok
}

// Operations returns all registered operation names, sorted.
func (r *Registry) Operations() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CoreRegistry returns descriptors for the common OFS core read operations.
// The optional pagination parameters (offset, limit) are declared so callers
// can page manually; ListAll is the preferred way to drain a collection.
func CoreRegistry() *Registry {
	r := NewRegistry()
	for _, d := range []Descriptor{
		{
			Operation: "get_activities",
			Path:      "/rest/ofscCore/v1/activities",
			Params:    []string{"resources", "dateFrom", "dateTo", "fields", "offset", "limit"},
			Defaults: map[string]any{
				"dateFrom": nil, "dateTo": nil, "fields": nil,
				"offset": 0, "limit": 100,
			},
			Description: "List activities for the given resources and date range.",
		},
		{
			Operation:   "get_activity",
			Path:        "/rest/ofscCore/v1/activities/{activityId}",
			Params:      []string{"activityId"},
			Description: "Retrieve a single activity by its identifier.",
		},
		{
			Operation: "get_resources",
			Path:      "/rest/ofscCore/v1/resources",
			Params:    []string{"fields", "offset", "limit"},
			Defaults: map[string]any{
				"fields": nil, "offset": 0, "limit": 100,
			},
			Description: "List resources in the instance's resource tree.",
		},
		{
			Operation:   "get_resource",
			Path:        "/rest/ofscCore/v1/resources/{resourceId}",
			Params:      []string{"resourceId"},
			Description: "Retrieve a single resource by its identifier.",
		},
		{
			Operation: "get_users",
			Path:      "/rest/ofscCore/v1/users",
			Params:    []string{"offset", "limit"},
			Defaults: map[string]any{
				"offset": 0, "limit": 100,
			},
			Description: "List users of the instance.",
		},
		{
			Operation:   "get_user",
			Path:        "/rest/ofscCore/v1/users/{login}",
			Params:      []string{"login"},
			Description: "Retrieve a single user by login.",
		},
		{
			Operation:   "get_subscriptions",
			Path:        "/rest/ofscCore/v1/events/subscriptions",
			Params:      []string{},
			Description: "List event subscriptions.",
		},
		{
			Operation:   "get_daily_extract_dates",
			Path:        "/rest/ofscCore/v1/folders/dailyExtract/folders",
			Params:      []string{},
			Description: "List the dates for which daily extract files exist.",
		},
	} {
		if err := r.Register(d); err != nil {
			// The table above is static; a failure here is a programming error.
			panic(err)
		}
	}
	return r
}
