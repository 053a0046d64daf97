package model

// Entity is an EntityInfo together with its fetched content.
type Entity interface {
	Info() *EntityInfo
	Content() []Item
}

// Default values for sparse policy metadata.
const (
	DefaultCompileVersion = 1
	DefaultPolicyType     = "ORCHESTRATION_POLICY"
)

// Policy is a deployable policy bundle.
type Policy struct {
	EntityInfo       *EntityInfo
	Items            []Item
	ActivationStatus EntityActivationStatus
	CompileVersion   int
	PolicyType       string
}

func (p *Policy) Info() *EntityInfo { return p.EntityInfo }
func (p *Policy) Content() []Item   { return p.Items }

// ItemsOfType returns the component items classified as t.
func (p *Policy) ItemsOfType(t ItemType) []Item {
	var out []Item
	for _, item := range p.Items {
		if ClassifyItem(item.Name) == t {
			out = append(out, item)
		}
	}
	return out
}

// Access is an access-control document.
type Access struct {
	EntityInfo *EntityInfo
	Items      []Item
	Document   string
}

func (a *Access) Info() *EntityInfo { return a.EntityInfo }
func (a *Access) Content() []Item   { return a.Items }

// Pip is a routing integration.
type Pip struct {
	EntityInfo *EntityInfo
	Items      []Item
	Route      string
}

func (p *Pip) Info() *EntityInfo { return p.EntityInfo }
func (p *Pip) Content() []Item   { return p.Items }

// Simple is an entity with no type-specific interpretation.
type Simple struct {
	EntityInfo *EntityInfo
	Items      []Item
}

func (s *Simple) Info() *EntityInfo { return s.EntityInfo }
func (s *Simple) Content() []Item   { return s.Items }
