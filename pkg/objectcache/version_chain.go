package objectcache

import "github.com/cuemby/mysticonsensus/pkg/types"

// versionChainDepth bounds how many recent versions of one object the
// committed tier keeps resident; older versions fall through to the
// backing store.
const versionChainDepth = 8

// versionChain is a short, ascending-by-version ring of an object's most
// recently committed versions.
type versionChain struct {
	versions []*types.Object // ascending by Version, len <= versionChainDepth
}

func (c *versionChain) insert(obj *types.Object) {
	for i, existing := range c.versions {
		if existing.Version == obj.Version {
			c.versions[i] = obj
			return
		}
	}
	c.versions = append(c.versions, obj)
	for i := 1; i < len(c.versions); i++ {
		j := i
		for j > 0 && c.versions[j-1].Version > c.versions[j].Version {
			c.versions[j-1], c.versions[j] = c.versions[j], c.versions[j-1]
			j--
		}
	}
	if len(c.versions) > versionChainDepth {
		c.versions = c.versions[len(c.versions)-versionChainDepth:]
	}
}

func (c *versionChain) latest() *types.Object {
	if len(c.versions) == 0 {
		return nil
	}
	return c.versions[len(c.versions)-1]
}

func (c *versionChain) at(v types.Version) *types.Object {
	for _, obj := range c.versions {
		if obj.Version == v {
			return obj
		}
	}
	return nil
}

func (c *versionChain) ltOrEq(v types.Version) *types.Object {
	var best *types.Object
	for _, obj := range c.versions {
		if obj.Version > v {
			break
		}
		best = obj
	}
	return best
}
