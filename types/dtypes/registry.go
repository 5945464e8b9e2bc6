package dtypes

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// DuplicateNameError is returned by Registry.Register when a name is already
// bound to a different code.
type DuplicateNameError struct {
	Name string
	Code TypeCode // the code the name is already bound to
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("custom datatype %q is already registered with code %d", e.Name, e.Code)
}

// UnknownTypeCodeError is returned by Registry.TypeName for a code with no
// registration.
type UnknownTypeCodeError struct {
	Code TypeCode
}

func (e *UnknownTypeCodeError) Error() string {
	return fmt.Sprintf("no custom datatype registered for type code %d", e.Code)
}

// UnknownTypeNameError is returned by Registry.TypeCode for an unregistered
// name.
type UnknownTypeNameError struct {
	Name string
}

func (e *UnknownTypeNameError) Error() string {
	return fmt.Sprintf("no custom datatype registered with name %q", e.Name)
}

// Registry maps custom datatype codes (>= CustomBegin) to human-readable type
// names, which code generators emit verbatim into target source.
//
// Registrations happen early and rarely; lookups happen from many concurrent
// code-generation goroutines. A registration completed before a lookup starts
// is guaranteed visible to it. Once registered, a binding is never changed or
// removed for the life of the Registry.
//
// The zero value is not usable: create one with NewRegistry. For the common
// process-wide table use the package-level Register/TypeName/TypeCode, which
// operate on Global.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]TypeCode
	byCode map[TypeCode]string
	next   TypeCode
}

// NewRegistry returns an empty custom datatype registry. Tests and embedders
// that want isolated type tables can create as many as they like; the code
// generator takes the registry to consult as an option.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]TypeCode),
		byCode: make(map[TypeCode]string),
		next:   CustomBegin,
	}
}

// Global is the default process-wide registry.
var Global = NewRegistry()

// Register binds name to the next unused custom type code and returns it.
// Registering a name twice returns the same code both times; it fails with a
// *DuplicateNameError only if the name would have to be rebound (which never
// happens through this API, but guards against a corrupted table).
func (r *Registry) Register(name string) (TypeCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if code, found := r.byName[name]; found {
		if r.byCode[code] != name {
			return 0, errors.WithStack(&DuplicateNameError{Name: name, Code: code})
		}
		return code, nil
	}
	if r.next == 0 { // wrapped past 255
		return 0, errors.Errorf("custom datatype registry is full, cannot register %q", name)
	}
	code := r.next
	r.next++
	r.byName[name] = code
	r.byCode[code] = name
	return code, nil
}

// TypeName returns the name registered for a custom type code.
func (r *Registry) TypeName(code TypeCode) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, found := r.byCode[code]
	if !found {
		return "", errors.WithStack(&UnknownTypeCodeError{Code: code})
	}
	return name, nil
}

// TypeCode returns the code registered for a custom type name.
func (r *Registry) TypeCode(name string) (TypeCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, found := r.byName[name]
	if !found {
		return 0, errors.WithStack(&UnknownTypeNameError{Name: name})
	}
	return code, nil
}

// Names returns the registered names sorted by code, so callers listing the
// table get a stable order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]TypeCode, 0, len(r.byCode))
	for code := range r.byCode {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	names := make([]string, len(codes))
	for ii, code := range codes {
		names[ii] = r.byCode[code]
	}
	return names
}

// Register binds name in the Global registry. See Registry.Register.
func Register(name string) (TypeCode, error) { return Global.Register(name) }

// TypeName looks up a custom code in the Global registry. See Registry.TypeName.
func TypeName(code TypeCode) (string, error) { return Global.TypeName(code) }

// TypeCodeOf looks up a custom name in the Global registry. See Registry.TypeCode.
func TypeCodeOf(name string) (TypeCode, error) { return Global.TypeCode(name) }
