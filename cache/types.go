package cache

import (
	"slices"

	"github.com/dailyyoga/objsync/entity"
)

// typeIndex is the lazily built type cross-reference: for every type seen,
// the list of its known subtypes in registration order.
type typeIndex struct {
	subtypes map[string][]string
}

func newTypeIndex() *typeIndex {
	return &typeIndex{subtypes: make(map[string][]string)}
}

// register records t and makes every ancestor aware of it.
func (ix *typeIndex) register(t *entity.Type) {
	if t == nil {
		return
	}
	if _, ok := ix.subtypes[t.Name]; !ok {
		ix.subtypes[t.Name] = nil
	}
	for _, a := range t.Ancestors() {
		ix.register(a)
		if !slices.Contains(ix.subtypes[a.Name], t.Name) {
			ix.subtypes[a.Name] = append(ix.subtypes[a.Name], t.Name)
		}
	}
}

func (ix *typeIndex) lookup(name string) []string {
	return slices.Clone(ix.subtypes[name])
}
