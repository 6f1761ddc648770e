package entity

// Key is the canonical "type@id" identity of a persisted entity. It is used as
// the cache key and as the business key on the wire.
type Key string

// KeyForID returns the key for a type name and identifier, "" when id is unset.
func KeyForID(typeName, id string) Key {
	if id == "" || typeName == "" {
		return ""
	}
	return Key(typeName + "@" + id)
}

// KeyForObject derives the key from the entity's declared type.
func KeyForObject(e Entity) Key {
	if e == nil || e.Type() == nil {
		return ""
	}
	return KeyForID(e.Type().Name, e.ID())
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return string(k)
}
