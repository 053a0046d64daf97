package model

// VersionChain holds every known version of one entity id in ascending
// patch order. Versions refer to their predecessor by index into the
// chain, so a cycle cannot be expressed.
type VersionChain struct {
	id       string
	versions []*EntityInfo
}

// NewVersionChain creates an empty chain for id.
func NewVersionChain(id string) *VersionChain {
	return &VersionChain{id: id}
}

// Append links info after the latest version. The patch version must be
// strictly greater than the latest one and info must not belong to any
// chain yet.
func (c *VersionChain) Append(info *EntityInfo) error {
	if info.chain != nil {
		return NewError(ErrCodeVersionChain, "%s is already linked to a version chain", info.id)
	}
	if info.id != c.id {
		return NewError(ErrCodeVersionChain, "cannot link %s into chain of %s", info.id, c.id)
	}
	if latest := c.Latest(); latest != nil && info.patch <= latest.patch {
		return NewError(ErrCodeVersionChain, "%s: patch %d does not follow latest patch %d", c.id, info.patch, latest.patch)
	}
	info.chain = c
	info.index = len(c.versions)
	c.versions = append(c.versions, info)
	return nil
}

// Latest returns the highest-patch version, or nil for an empty chain.
func (c *VersionChain) Latest() *EntityInfo {
	if len(c.versions) == 0 {
		return nil
	}
	return c.versions[len(c.versions)-1]
}

// Len returns the number of linked versions.
func (c *VersionChain) Len() int { return len(c.versions) }
