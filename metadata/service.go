// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package metadata

import (
	"context"

	"github.com/dennisklicker/Conseil/etl/index"
)

// MetadataService merges PhysicalSchema with the configured OverrideTree,
// enforces the visibility cascade and answers discovery/attribute-value
// lookups. It never mutates either input after construction.
type MetadataService struct {
	schema    PhysicalSchema
	overrides OverrideTree
	indexer   *index.Indexer
	cache     *AttributeValueCache
}

func NewMetadataService(schema PhysicalSchema, overrides OverrideTree, indexer *index.Indexer) *MetadataService {
	return &MetadataService{
		schema:    schema,
		overrides: overrides,
		indexer:   indexer,
		cache:     NewAttributeValueCache(indexer),
	}
}

func (s *MetadataService) platformOverride(name string) *PlatformOverride {
	if ov, ok := s.overrides.Platforms[name]; ok {
		return &ov
	}
	return nil
}

func (s *MetadataService) findPlatform(name string) (PlatformPhysical, bool) {
	for _, p := range s.schema.Platforms {
		if p.Name == name {
			return p, true
		}
	}
	return PlatformPhysical{}, false
}

func (s *MetadataService) findNetwork(platform PlatformPhysical, name string) (NetworkPhysical, bool) {
	for _, n := range platform.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return NetworkPhysical{}, false
}

func (s *MetadataService) findEntity(network NetworkPhysical, name string) (EntityPhysical, bool) {
	for _, e := range network.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return EntityPhysical{}, false
}

func (s *MetadataService) findAttribute(entity EntityPhysical, name string) (AttributePhysical, bool) {
	for _, a := range entity.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributePhysical{}, false
}

// ListPlatforms returns every visible platform.
func (s *MetadataService) ListPlatforms() []Platform {
	var out []Platform
	for _, phys := range s.schema.Platforms {
		p, ok := mergePlatform(phys, s.platformOverride(phys.Name))
		if ok {
			out = append(out, p)
		}
	}
	return out
}

// ListNetworks returns the visible networks under platformName, or a
// PathError if platformName is unknown or hidden.
func (s *MetadataService) ListNetworks(platformName string) ([]Network, error) {
	phys, ok := s.findPlatform(platformName)
	if !ok {
		return nil, errUnknown(platformName)
	}
	platOv := s.platformOverride(platformName)
	_, platVisible := mergePlatform(phys, platOv)
	if !platVisible {
		return nil, errHidden(platformName)
	}

	var netOverrides map[string]NetworkOverride
	if platOv != nil {
		netOverrides = platOv.Networks
	}

	var out []Network
	for _, netPhys := range phys.Networks {
		var ov *NetworkOverride
		if o, found := netOverrides[netPhys.Name]; found {
			ov = &o
		}
		n, visible := mergeNetwork(netPhys, ov, platVisible)
		if visible {
			out = append(out, n)
		}
	}
	return out, nil
}

// ListEntities returns the visible entities under platform/network.
func (s *MetadataService) ListEntities(ctx context.Context, platformName, networkName string) ([]Entity, error) {
	phys, ok := s.findPlatform(platformName)
	if !ok {
		return nil, errUnknown(platformName)
	}
	platOv := s.platformOverride(platformName)
	_, platVisible := mergePlatform(phys, platOv)
	if !platVisible {
		return nil, errHidden(platformName)
	}

	netPhys, ok := s.findNetwork(phys, networkName)
	if !ok {
		return nil, errUnknown(networkName)
	}
	var netOv *NetworkOverride
	if platOv != nil {
		if o, found := platOv.Networks[networkName]; found {
			netOv = &o
		}
	}
	_, netVisible := mergeNetwork(netPhys, netOv, platVisible)
	if !netVisible {
		return nil, errHidden(networkName)
	}

	var entOverrides map[string]EntityOverride
	if netOv != nil {
		entOverrides = netOv.Entities
	}

	var out []Entity
	for _, entPhys := range netPhys.Entities {
		var ov *EntityOverride
		if o, found := entOverrides[entPhys.Name]; found {
			ov = &o
		}
		e, visible := mergeEntity(entPhys, ov, netVisible)
		if !visible {
			continue
		}
		if count, err := s.indexer.Count(ctx, entPhys.TableKey); err == nil {
			e.Count = count
		}
		out = append(out, e)
	}
	return out, nil
}

// ListAttributes returns the visible attributes of platform/network/entity.
func (s *MetadataService) ListAttributes(platformName, networkName, entityName string) ([]Attribute, error) {
	entPhys, _, entVisible, ov, err := s.resolveEntity(platformName, networkName, entityName)
	if err != nil {
		return nil, err
	}
	var attrOverrides map[string]AttributeOverride
	if ov != nil {
		attrOverrides = ov.Attributes
	}

	var out []Attribute
	for _, attrPhys := range entPhys.Attributes {
		var aOv *AttributeOverride
		if o, found := attrOverrides[attrPhys.Name]; found {
			aOv = &o
		}
		a, visible := mergeAttribute(entityName, attrPhys, aOv, entVisible)
		if visible {
			out = append(out, a)
		}
	}
	return out, nil
}

// AttributeValues returns the distinct values of one attribute, consulting
// the cache for cardinality-safe attributes and falling back to a
// prefix-bounded scan otherwise.
func (s *MetadataService) AttributeValues(ctx context.Context, platformName, networkName, entityName, attrName, prefix string) ([]string, error) {
	entPhys, entView, entVisible, ov, err := s.resolveEntity(platformName, networkName, entityName)
	if err != nil {
		return nil, err
	}
	var attrOverrides map[string]AttributeOverride
	if ov != nil {
		attrOverrides = ov.Attributes
	}
	attrPhys, ok := s.findAttribute(entPhys, attrName)
	if !ok {
		return nil, errUnknown(attrName)
	}
	var aOv *AttributeOverride
	if o, found := attrOverrides[attrName]; found {
		aOv = &o
	}
	attr, visible := mergeAttribute(entityName, attrPhys, aOv, entVisible)
	if !visible {
		return nil, errHidden(attrName)
	}

	if attr.CacheSafe() {
		return s.cache.Values(ctx, entView, attr, entPhys.TableKey, prefix)
	}
	return s.indexer.DistinctColumnValues(ctx, entPhys.TableKey, attr.Column(), prefix, maxCachedValues(attr))
}

// EntityTableKey resolves platform/network/entity to the packdb table key
// backing it, used by the query engine to build a dynamic pack.Query
// without exposing storage detail anywhere in the discovery views.
func (s *MetadataService) EntityTableKey(platformName, networkName, entityName string) (string, error) {
	entPhys, _, _, _, err := s.resolveEntity(platformName, networkName, entityName)
	if err != nil {
		return "", err
	}
	return entPhys.TableKey, nil
}

// resolveEntity walks platform -> network -> entity, returning the
// physical entity, its merged view, the entity's resolved visibility and
// its override (for attribute lookups), or a PathError at the first
// unknown/hidden step.
func (s *MetadataService) resolveEntity(platformName, networkName, entityName string) (EntityPhysical, Entity, bool, *EntityOverride, error) {
	phys, ok := s.findPlatform(platformName)
	if !ok {
		return EntityPhysical{}, Entity{}, false, nil, errUnknown(platformName)
	}
	platOv := s.platformOverride(platformName)
	_, platVisible := mergePlatform(phys, platOv)
	if !platVisible {
		return EntityPhysical{}, Entity{}, false, nil, errHidden(platformName)
	}

	netPhys, ok := s.findNetwork(phys, networkName)
	if !ok {
		return EntityPhysical{}, Entity{}, false, nil, errUnknown(networkName)
	}
	var netOv *NetworkOverride
	if platOv != nil {
		if o, found := platOv.Networks[networkName]; found {
			netOv = &o
		}
	}
	_, netVisible := mergeNetwork(netPhys, netOv, platVisible)
	if !netVisible {
		return EntityPhysical{}, Entity{}, false, nil, errHidden(networkName)
	}

	entPhys, ok := s.findEntity(netPhys, entityName)
	if !ok {
		return EntityPhysical{}, Entity{}, false, nil, errUnknown(entityName)
	}
	var entOv *EntityOverride
	if netOv != nil {
		if o, found := netOv.Entities[entityName]; found {
			entOv = &o
		}
	}
	entView, entVisible := mergeEntity(entPhys, entOv, netVisible)
	if !entVisible {
		return EntityPhysical{}, Entity{}, false, nil, errHidden(entityName)
	}
	return entPhys, entView, entVisible, entOv, nil
}
