package repository

import (
	"github.com/roach88/configstore/internal/model"
)

// Entity path patterns. Group names other than locationPrefix, entityId and
// versionNumber are read by the matching constructor.
const (
	PolicyPattern = `^(?P<locationPrefix>.*?(?P<entityId>(?P<policyFullName>(?:[-_a-zA-Z\d]+/){2}(?P<policyShortName>[-_a-zA-Z0-9]+))/(?P<policyMajorVersion>\d+)\.(?P<policyMinorVersion>\d+))(?:/(?P<versionNumber>\d+))?)/(?:policy-metadata\.json|process/.*|rules/.*|config/.*)$`

	AccessPattern = `^(?P<locationPrefix>.*?(?P<entityId>(?P<policyFullName>(?:[-_a-zA-Z\d]+/){2}(?P<policyShortName>[-_a-zA-Z0-9]+))/(?P<policyMajorVersion>\d+)/access-control)/(?P<versionNumber>\d+)/policy-access\.json)$`

	PipPattern = `^(?P<locationPrefix>.*?(?P<entityId>[-_a-zA-Z\d]+/routes/*.*\.xml))$`
)

// PolicyRule builds policy versions stored under <ns>/<major>.<minor>[/<patch>].
var PolicyRule = Rule{
	Type:    model.EntityPolicy,
	Pattern: PolicyPattern,
	Build:   buildPolicyInfo,
}

// AccessRule builds access-control documents.
var AccessRule = Rule{
	Type:      model.EntityAccess,
	Pattern:   AccessPattern,
	Versioned: true,
	Build:     buildAccessInfo,
}

// PipRule builds routing integrations.
var PipRule = Rule{
	Type:    model.EntityPip,
	Pattern: PipPattern,
	Build:   buildPipInfo,
}

// DefaultFactories is the rule table in evaluation order.
func DefaultFactories() []*EntityFactory {
	return []*EntityFactory{
		MustEntityFactory(PolicyRule),
		MustEntityFactory(AccessRule),
		MustEntityFactory(PipRule),
	}
}

func buildPolicyInfo(c Captures, items []model.ItemRef) (*model.EntityInfo, error) {
	patch, err := c.Patch()
	if err != nil {
		return nil, err
	}
	major, err := c.Int("policyMajorVersion")
	if err != nil {
		return nil, err
	}
	minor, err := c.Int("policyMinorVersion")
	if err != nil {
		return nil, err
	}

	var kept []model.ItemRef
	var filtered []string
	for _, item := range items {
		if model.ClassifyItem(item.Name) == model.ItemUnrecognized {
			filtered = append(filtered, item.Name)
			continue
		}
		kept = append(kept, item)
	}

	return model.NewEntityInfo(model.EntityInfoSpec{
		ID:                c.EntityID(),
		LocationPrefix:    c.LocationPrefix(),
		Type:              model.EntityPolicy,
		Name:              c["policyFullName"],
		ShortName:         c["policyShortName"],
		Patch:             patch,
		Major:             major,
		Minor:             minor,
		Items:             kept,
		FilteredItemNames: filtered,
	})
}

func buildAccessInfo(c Captures, items []model.ItemRef) (*model.EntityInfo, error) {
	patch, err := c.Patch()
	if err != nil {
		return nil, err
	}
	major, err := c.Int("policyMajorVersion")
	if err != nil {
		return nil, err
	}
	return model.NewEntityInfo(model.EntityInfoSpec{
		ID:             c.EntityID(),
		LocationPrefix: c.LocationPrefix(),
		Type:           model.EntityAccess,
		Name:           c["policyFullName"],
		ShortName:      c["policyShortName"],
		Patch:          patch,
		Major:          major,
		Items:          items,
	})
}

func buildPipInfo(c Captures, items []model.ItemRef) (*model.EntityInfo, error) {
	return model.NewEntityInfo(model.EntityInfoSpec{
		ID:             c.EntityID(),
		LocationPrefix: c.LocationPrefix(),
		Type:           model.EntityPip,
		Items:          items,
	})
}
