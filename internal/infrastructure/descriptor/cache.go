// Package descriptor provides a bounded, LRU-cached front end onto the
// reflection/metadata layer that resolves a class+method+generic-args triple
// to a concrete method descriptor. Reflection-based type/assembly scanning is
// an out-of-scope external collaborator per spec.md §1; this package only
// owns the caching policy in front of whatever Resolver the host supplies.
//
// The Call Stack Engine's create() (spec.md §4.4) calls Resolve() on every
// instrumented entry, so an uncached resolution — which in source languages
// with real reflection can mean a type scan — would dominate the hot path.
package descriptor

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

// Descriptor is the resolved shape of one instrumented method.
type Descriptor struct {
	MethodDescriptor string
	ParameterTypes   []string
	IsStatic         bool
	IsExtension      bool
	ExtendedType     string
}

// Resolver is the external reflection/metadata collaborator (spec.md §1).
// Hosts implement it against whatever type system their instrumented code
// lives in; callwatch never reaches into a type system directly.
type Resolver interface {
	Resolve(classType, methodName string, genericArgs []string) (Descriptor, error)
}

// Cache wraps a Resolver with a bounded LRU of previously resolved
// descriptors.
type Cache struct {
	resolver Resolver
	cache    *lru.Cache[string, Descriptor]
}

// DefaultSize is the default number of distinct (class, method, generic-args)
// combinations kept warm. Large enough for a typical instrumented surface
// without growing unbounded across a long-lived process.
const DefaultSize = 4096

// New returns a Cache of the given size fronting resolver. A size <= 0
// selects DefaultSize.
func New(resolver Resolver, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, Descriptor](size)
	if err != nil {
		return nil, fmt.Errorf("descriptor: creating lru cache: %w", err)
	}
	return &Cache{resolver: resolver, cache: c}, nil
}

// Resolve returns the descriptor for classType/methodName/genericArgs,
// consulting the cache first. Returns monitoring.ErrMethodNotFound wrapping
// the resolver's error on a miss.
func (c *Cache) Resolve(classType, methodName string, genericArgs []string) (Descriptor, error) {
	key := cacheKey(classType, methodName, genericArgs)
	if d, ok := c.cache.Get(key); ok {
		return d, nil
	}

	d, err := c.resolver.Resolve(classType, methodName, genericArgs)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %s.%s: %v", monitoring.ErrMethodNotFound, classType, methodName, err)
	}
	c.cache.Add(key, d)
	return d, nil
}

// Purge evicts the entire cache, used when a host hot-reloads the
// instrumented assembly and cached descriptors may now be stale.
func (c *Cache) Purge() {
	c.cache.Purge()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int { return c.cache.Len() }

func cacheKey(classType, methodName string, genericArgs []string) string {
	var b strings.Builder
	b.WriteString(classType)
	b.WriteByte('#')
	b.WriteString(methodName)
	for _, g := range genericArgs {
		b.WriteByte('<')
		b.WriteString(g)
	}
	return b.String()
}
