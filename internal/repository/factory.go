package repository

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"strconv"
	"strings"

	"github.com/roach88/configstore/internal/model"
)

// Capture group names every entity pattern uses.
const (
	GroupLocationPrefix = "locationPrefix"
	GroupEntityID       = "entityId"
	GroupVersionNumber  = "versionNumber"
)

// Captures holds the named groups of a matched key.
type Captures map[string]string

// LocationPrefix returns the locationPrefix group.
func (c Captures) LocationPrefix() string { return c[GroupLocationPrefix] }

// EntityID returns the entityId group.
func (c Captures) EntityID() string { return c[GroupEntityID] }

// Int parses a numeric group. A missing or empty group is 0.
func (c Captures) Int(name string) (int, error) {
	v := c[name]
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, model.WrapError(model.ErrCodeMalformedNamespace, err, "group %s=%q is not a number", name, v)
	}
	return n, nil
}

// Patch returns the versionNumber group, 0 when absent.
func (c Captures) Patch() (int, error) { return c.Int(GroupVersionNumber) }

// Constructor assembles an EntityInfo from the captures of the first key
// and every item the builder accepted.
type Constructor func(c Captures, items []model.ItemRef) (*model.EntityInfo, error)

// Rule binds a path pattern to an entity type.
type Rule struct {
	Type    model.EntityType
	Pattern string
	// Versioned rules must declare a versionNumber group.
	Versioned bool
	Build     Constructor
}

// EntityFactory recognizes the keys of one entity type.
type EntityFactory struct {
	rule  Rule
	re    *regexp.Regexp
	names []string
}

// NewEntityFactory validates and compiles rule. The pattern must declare
// locationPrefix and entityId groups, with entityId inside
// locationPrefix.
func NewEntityFactory(rule Rule) (*EntityFactory, error) {
	if rule.Build == nil {
		return nil, model.NewError(model.ErrCodePatternConfig, "%s rule has no constructor", rule.Type)
	}
	tree, err := syntax.Parse(rule.Pattern, syntax.Perl)
	if err != nil {
		return nil, model.WrapError(model.ErrCodePatternConfig, err, "%s pattern does not parse", rule.Type)
	}

	location := findCapture(tree, GroupLocationPrefix)
	if location == nil {
		return nil, model.NewError(model.ErrCodePatternConfig, "%s pattern has no %s group", rule.Type, GroupLocationPrefix)
	}
	if findCapture(tree, GroupEntityID) == nil {
		return nil, model.NewError(model.ErrCodePatternConfig, "%s pattern has no %s group", rule.Type, GroupEntityID)
	}
	if findCapture(location, GroupEntityID) == nil {
		return nil, model.NewError(model.ErrCodePatternConfig, "%s pattern: %s must be nested in %s", rule.Type, GroupEntityID, GroupLocationPrefix)
	}
	if rule.Versioned && findCapture(tree, GroupVersionNumber) == nil {
		return nil, model.NewError(model.ErrCodePatternConfig, "%s pattern has no %s group", rule.Type, GroupVersionNumber)
	}

	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		return nil, model.WrapError(model.ErrCodePatternConfig, err, "%s pattern does not compile", rule.Type)
	}
	return &EntityFactory{rule: rule, re: re, names: re.SubexpNames()}, nil
}

// MustEntityFactory is like NewEntityFactory but panics on error. For
// rule tables fixed at compile time.
func MustEntityFactory(rule Rule) *EntityFactory {
	f, err := NewEntityFactory(rule)
	if err != nil {
		panic(err)
	}
	return f
}

func findCapture(re *syntax.Regexp, name string) *syntax.Regexp {
	if re.Op == syntax.OpCapture && re.Name == name {
		return re
	}
	for _, sub := range re.Sub {
		if found := findCapture(sub, name); found != nil {
			return found
		}
	}
	return nil
}

// Type returns the entity type the factory builds.
func (f *EntityFactory) Type() model.EntityType { return f.rule.Type }

// NewBuilder returns a builder seeded with ref when ref's key matches the
// factory's pattern.
func (f *EntityFactory) NewBuilder(ref model.ItemRef) (*EntityBuilder, bool) {
	m := f.re.FindStringSubmatch(ref.Name)
	if m == nil {
		return nil, false
	}
	captures := make(Captures, len(m))
	for i, name := range f.names {
		if name != "" {
			captures[name] = m[i]
		}
	}
	return &EntityBuilder{
		factory:        f,
		captures:       captures,
		locationPrefix: captures.LocationPrefix(),
		items:          []model.ItemRef{ref},
	}, true
}

// EntityBuilder accumulates the items of one entity.
type EntityBuilder struct {
	factory        *EntityFactory
	captures       Captures
	locationPrefix string
	items          []model.ItemRef
}

// AddItem accepts ref when it is the location prefix itself or lies under
// it. A rejected item leaves the builder unchanged.
func (b *EntityBuilder) AddItem(ref model.ItemRef) bool {
	if ref.Name != b.locationPrefix && !strings.HasPrefix(ref.Name, b.locationPrefix+"/") {
		return false
	}
	b.items = append(b.items, ref)
	return true
}

// LocationPrefix returns the prefix items must share.
func (b *EntityBuilder) LocationPrefix() string { return b.locationPrefix }

// Build assembles the EntityInfo.
func (b *EntityBuilder) Build() (*model.EntityInfo, error) {
	info, err := b.factory.rule.Build(b.captures, b.items)
	if err != nil {
		return nil, fmt.Errorf("build %s at %s: %w", b.factory.rule.Type, b.locationPrefix, err)
	}
	return info, nil
}
