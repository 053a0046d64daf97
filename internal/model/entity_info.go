package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
)

// EntityType enumerates the kinds of entity the client can assemble.
type EntityType string

const (
	EntityPolicy EntityType = "POLICY"
	EntityAccess EntityType = "ACCESS"
	EntityPip    EntityType = "PIP"
	EntitySimple EntityType = "SIMPLE"
)

// ParseEntityType parses a case-insensitive entity type name.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case EntityPolicy, EntityAccess, EntityPip, EntitySimple:
		return t, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Domain prefix for per-item version hashing.
// Version suffix enables future algorithm migration.
const domainItemVersion = "configstore/item/v1"

// versionNamespace seeds the UUIDv5 entity version.
var versionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/roach88/configstore/entity-version"))

// EntityInfoSpec holds the inputs to NewEntityInfo.
type EntityInfoSpec struct {
	ID                string
	LocationPrefix    string
	Type              EntityType
	Name              string
	ShortName         string
	Patch             int
	Major             int
	Minor             int
	Items             []ItemRef
	FilteredItemNames []string
}

// EntityInfo is the metadata of one entity version.
//
// Values are immutable once built. The link to earlier versions lives in
// a VersionChain and is set at most once, by VersionChain.Append.
type EntityInfo struct {
	id             string
	locationPrefix string
	idPrefix       string
	entityType     EntityType
	name           string
	shortName      string
	version        string
	patch          int
	major          int
	minor          int
	items          []ItemRef
	filtered       []string

	chain *VersionChain
	index int
}

// NewEntityInfo validates spec and computes the derived fields.
func NewEntityInfo(spec EntityInfoSpec) (*EntityInfo, error) {
	if spec.ID == "" {
		return nil, NewError(ErrCodeMalformedNamespace, "entity id is empty (location=%q)", spec.LocationPrefix)
	}
	if !strings.Contains(spec.LocationPrefix, spec.ID) {
		return nil, NewError(ErrCodeMalformedNamespace, "location %q does not contain id %q", spec.LocationPrefix, spec.ID)
	}
	if spec.Patch < 0 || spec.Major < 0 || spec.Minor < 0 {
		return nil, NewError(ErrCodeMalformedNamespace, "negative version number in %q", spec.LocationPrefix)
	}
	if spec.Type == "" {
		spec.Type = EntitySimple
	}

	items := slices.Clone(spec.Items)
	slices.SortFunc(items, func(a, b ItemRef) int { return strings.Compare(a.Name, b.Name) })
	items = slices.Compact(items)

	filtered := slices.Clone(spec.FilteredItemNames)
	slices.Sort(filtered)

	name := spec.Name
	if name == "" {
		name = spec.ID
	}

	return &EntityInfo{
		id:             spec.ID,
		locationPrefix: spec.LocationPrefix,
		idPrefix:       spec.LocationPrefix[:max(strings.LastIndex(spec.LocationPrefix, spec.ID), 0)],
		entityType:     spec.Type,
		name:           name,
		shortName:      spec.ShortName,
		version:        computeVersion(spec.LocationPrefix, items),
		patch:          spec.Patch,
		major:          spec.Major,
		minor:          spec.Minor,
		items:          items,
		filtered:       filtered,
	}, nil
}

// computeVersion hashes every item over (relative path, tag), sorts the
// digests, and derives one UUIDv5 from their concatenation.
func computeVersion(locationPrefix string, items []ItemRef) string {
	digests := make([]string, 0, len(items))
	for _, item := range items {
		rel := strings.TrimPrefix(item.Name, locationPrefix)
		h := sha256.New()
		h.Write([]byte(domainItemVersion))
		h.Write([]byte{0x00})
		h.Write([]byte(rel))
		h.Write([]byte{0x00})
		h.Write([]byte(item.Tag))
		digests = append(digests, hex.EncodeToString(h.Sum(nil)))
	}
	slices.Sort(digests)
	return uuid.NewSHA1(versionNamespace, []byte(strings.Join(digests, ""))).String()
}

func (e *EntityInfo) ID() string             { return e.id }
func (e *EntityInfo) LocationPrefix() string { return e.locationPrefix }
func (e *EntityInfo) IDPrefix() string       { return e.idPrefix }
func (e *EntityInfo) Type() EntityType       { return e.entityType }
func (e *EntityInfo) Name() string           { return e.name }
func (e *EntityInfo) ShortName() string      { return e.shortName }
func (e *EntityInfo) Version() string        { return e.version }
func (e *EntityInfo) PatchVersion() int      { return e.patch }
func (e *EntityInfo) MajorVersion() int      { return e.major }
func (e *EntityInfo) MinorVersion() int      { return e.minor }

// SortKey is the composite key snapshots are ordered by.
func (e *EntityInfo) SortKey() string { return e.idPrefix + e.id }

// Items returns the component items sorted by name.
func (e *EntityInfo) Items() []ItemRef { return slices.Clone(e.items) }

// FilteredItemNames returns item names matched by location but dropped
// during construction.
func (e *EntityInfo) FilteredItemNames() []string { return slices.Clone(e.filtered) }

// PriorVersion returns the immediately preceding version, or nil.
func (e *EntityInfo) PriorVersion() *EntityInfo {
	if e.chain == nil || e.index == 0 {
		return nil
	}
	return e.chain.versions[e.index-1]
}

// History returns every linked version up to and including e, oldest first.
func (e *EntityInfo) History() []*EntityInfo {
	if e.chain == nil {
		return []*EntityInfo{e}
	}
	return slices.Clone(e.chain.versions[:e.index+1])
}

// LogicalVersion returns major.minor.patch as a semantic version.
func (e *EntityInfo) LogicalVersion() *semver.Version {
	return semver.New(uint64(e.major), uint64(e.minor), uint64(e.patch), "", "")
}

// MajorVersionString returns "major".
func (e *EntityInfo) MajorVersionString() string { return strconv.Itoa(e.major) }

// MinorVersionString returns "major.minor".
func (e *EntityInfo) MinorVersionString() string { return fmt.Sprintf("%d.%d", e.major, e.minor) }

// PatchVersionString returns "major.minor.patch".
func (e *EntityInfo) PatchVersionString() string { return e.LogicalVersion().String() }

// LogicalVersionString joins name and patch version with sep.
func (e *EntityInfo) LogicalVersionString(sep string) string {
	return e.name + sep + e.PatchVersionString()
}

func (e *EntityInfo) String() string {
	return fmt.Sprintf("%s(%s, patch=%d, version=%s)", e.entityType, e.id, e.patch, e.version)
}
