package entity

var (
	partyType    = &Type{Name: "Party"}
	customerType = &Type{Name: "Customer", Parent: partyType}
	noteType     = &Type{Name: "Note"}
)

func init() {
	customerType.New = func() Entity { return newCustomer() }
	noteType.New = func() Entity { return newNote() }
}

type customer struct {
	VersionedBase
	name string
}

func newCustomer() *customer {
	c := &customer{}
	c.Init(c, customerType)
	return c
}

func (c *customer) Reload(p Payload, _ Resolver) error {
	if name, ok := p["name"].(string); ok {
		old := c.name
		c.name = name
		c.Changed("name", old, name)
	}
	return nil
}

func (c *customer) Snapshot() Payload {
	return Payload{"name": c.name}
}

type note struct {
	Base
	text string
}

func newNote() *note {
	n := &note{}
	n.Init(n, noteType)
	return n
}

func (n *note) Reload(p Payload, _ Resolver) error {
	if text, ok := p["text"].(string); ok {
		n.text = text
	}
	return nil
}

func (n *note) Snapshot() Payload {
	return Payload{"text": n.text}
}
