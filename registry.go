package edusiap

import (
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
)

// IndexDescriptor declares a secondary lookup path on a record field.
type IndexDescriptor struct {
	Name    string `json:"name"`
	KeyPath string `json:"keyPath"`
	Unique  bool   `json:"unique,omitempty"`
}

// CollectionDescriptor declares a named record collection: its primary key
// field, whether keys are generated, and its secondary indexes.
type CollectionDescriptor struct {
	Name          string            `json:"name"`
	KeyPath       string            `json:"keyPath"`
	AutoIncrement bool              `json:"autoIncrement,omitempty"`
	Indexes       []IndexDescriptor `json:"indexes,omitempty"`
}

func (cd CollectionDescriptor) Index(name string) (IndexDescriptor, bool) {
	for _, idx := range cd.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}

	return IndexDescriptor{}, false
}

func (cd CollectionDescriptor) clone() CollectionDescriptor {
	var cp CollectionDescriptor
	if err := copier.CopyWithOption(&cp, &cd, copier.Option{DeepCopy: true}); err != nil {
		panic("could not copy collection descriptor: " + err.Error())
	}

	return cp
}

func (cd CollectionDescriptor) validate() error {
	if cd.Name == "" {
		return errors.Wrap(ErrInvalidRegistry, "collection name is empty")
	}

	if cd.KeyPath == "" {
		return errors.Wrapf(ErrInvalidRegistry, "collection %s has no key path", cd.Name)
	}

	seen := make(map[string]struct{}, len(cd.Indexes))
	for _, idx := range cd.Indexes {
		if idx.Name == "" || idx.KeyPath == "" {
			return errors.Wrapf(ErrInvalidRegistry, "collection %s declares an incomplete index", cd.Name)
		}

		if _, ok := seen[idx.Name]; ok {
			return errors.Wrapf(ErrInvalidRegistry, "collection %s declares index %s twice", cd.Name, idx.Name)
		}
		seen[idx.Name] = struct{}{}
	}

	return nil
}

// Registry is the declared, immutable set of collections.
type Registry struct {
	names []string
	descs map[string]CollectionDescriptor
}

func NewRegistry(descs ...CollectionDescriptor) (*Registry, error) {
	r := &Registry{
		names: make([]string, 0, len(descs)),
		descs: make(map[string]CollectionDescriptor, len(descs)),
	}

	for _, d := range descs {
		if err := d.validate(); err != nil {
			return nil, err
		}

		if _, ok := r.descs[d.Name]; ok {
			return nil, errors.Wrapf(ErrInvalidRegistry, "collection %s declared twice", d.Name)
		}

		r.names = append(r.names, d.Name)
		r.descs[d.Name] = d.clone()
	}

	return r, nil
}

// MustRegistry is like NewRegistry but panics on an invalid declaration.
func MustRegistry(descs ...CollectionDescriptor) *Registry {
	r, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Names returns collection names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *Registry) Has(name string) bool {
	_, ok := r.descs[name]
	return ok
}

func (r *Registry) Lookup(name string) (CollectionDescriptor, bool) {
	d, ok := r.descs[name]
	if !ok {
		return CollectionDescriptor{}, false
	}

	return d.clone(), true
}

func (r *Registry) Descriptors() []CollectionDescriptor {
	out := make([]CollectionDescriptor, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.descs[n].clone())
	}
	return out
}
