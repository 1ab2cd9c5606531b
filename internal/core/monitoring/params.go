package monitoring

// Params is an insertion-order-preserving string-to-string map, used for
// MethodCallInfo.Parameters (spec.md §3: "ordered mapping string->string,
// insertion-order preserved for reproducible output"). A plain Go map would
// make reporter output (CSV columns, log lines) nondeterministic between
// runs, which the teacher's own output writers rely on not happening.
//
// Last-write-wins on a duplicate Set; the key keeps its original position.
type Params struct {
	order []string
	vals  map[string]string
}

// NewParams returns an empty ordered parameter set.
func NewParams() *Params {
	return &Params{vals: make(map[string]string)}
}

// Set inserts or overwrites key. Overwriting an existing key does not change
// its position in iteration order.
func (p *Params) Set(key, value string) {
	if p.vals == nil {
		p.vals = make(map[string]string)
	}
	if _, exists := p.vals[key]; !exists {
		p.order = append(p.order, key)
	}
	p.vals[key] = value
}

// SetIfAbsent inserts key only if it is not already present, used by
// MethodCallInfo construction to apply attribute-declared parameters without
// clobbering config-declared ones that were set first (spec.md §4.4: "merges
// static parameters from config with attribute-declared parameters (ordered
// so that config entries override attributes)").
func (p *Params) SetIfAbsent(key, value string) {
	if p.vals == nil {
		p.vals = make(map[string]string)
	}
	if _, exists := p.vals[key]; exists {
		return
	}
	p.order = append(p.order, key)
	p.vals[key] = value
}

// Get returns the value for key and whether it was present.
func (p *Params) Get(key string) (string, bool) {
	if p.vals == nil {
		return "", false
	}
	v, ok := p.vals[key]
	return v, ok
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	return len(p.order)
}

// Each calls fn for every parameter in insertion order. fn must not mutate p.
func (p *Params) Each(fn func(key, value string)) {
	for _, k := range p.order {
		fn(k, p.vals[k])
	}
}

// reset clears all entries for pool reuse without releasing the backing
// arrays, avoiding an allocation on the next rental.
func (p *Params) reset() {
	p.order = p.order[:0]
	for k := range p.vals {
		delete(p.vals, k)
	}
}

// clone returns an independent copy, used when a record needs to hand its
// parameter snapshot to an observer that may outlive the record's pool
// lifetime (e.g. an async reporter still formatting a Start event after End
// has already returned the record).
func (p *Params) clone() *Params {
	out := NewParams()
	p.Each(func(k, v string) { out.Set(k, v) })
	return out
}

// Clone is the exported form of clone, used by reporters that need a
// snapshot independent of the live record's pooled lifetime.
func (p *Params) Clone() *Params {
	return p.clone()
}
