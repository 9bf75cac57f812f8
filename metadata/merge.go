// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package metadata

import (
	"strings"
	"unicode"
)

// titleCase is the default displayName for any node whose override does
// not set one explicitly: the identifier with its first letter (and the
// first letter of every underscore-separated word) capitalized and the
// underscores replaced by spaces ("token_transfer" -> "Token Transfer").
func titleCase(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func strOr(override *string, fallback string) string {
	if override != nil {
		return *override
	}
	return fallback
}

func intOr(override *int, fallback int) int {
	if override != nil {
		return *override
	}
	return fallback
}

// visible resolves the effective visibility of one node given its own
// override and whether its parent is already known visible. The root
// platform defaults to invisible unless explicitly enabled; every other
// level defaults to invisible unless the parent is visible AND nothing
// explicitly turns it off.
func visible(parentVisible bool, own *bool, isRoot bool) bool {
	if isRoot {
		return own != nil && *own
	}
	if !parentVisible {
		return false
	}
	if own != nil {
		return *own
	}
	return true
}

// mergePlatform projects one physical platform through its override, if
// any, resolving displayName/description/visible. visible is always
// computed relative to the root rule.
func mergePlatform(phys PlatformPhysical, ov *PlatformOverride) (Platform, bool) {
	var displayName, description string
	var own *bool
	if ov != nil {
		displayName = strOr(ov.DisplayName, titleCase(phys.Name))
		description = strOr(ov.Description, "")
		own = ov.Visible
	} else {
		displayName = titleCase(phys.Name)
	}
	return Platform{Name: phys.Name, DisplayName: displayName, Description: description},
		visible(true, own, true)
}

func mergeNetwork(phys NetworkPhysical, ov *NetworkOverride, parentVisible bool) (Network, bool) {
	var displayName, description string
	var own *bool
	if ov != nil {
		displayName = strOr(ov.DisplayName, titleCase(phys.Name))
		description = strOr(ov.Description, "")
		own = ov.Visible
	} else {
		displayName = titleCase(phys.Name)
	}
	return Network{Name: phys.Name, DisplayName: displayName, Description: description},
		visible(parentVisible, own, false)
}

func mergeEntity(phys EntityPhysical, ov *EntityOverride, parentVisible bool) (Entity, bool) {
	var displayName, description string
	var own *bool
	if ov != nil {
		displayName = strOr(ov.DisplayName, titleCase(phys.Name))
		description = strOr(ov.Description, "")
		own = ov.Visible
	} else {
		displayName = titleCase(phys.Name)
	}
	return Entity{Name: phys.Name, DisplayName: displayName, Description: description},
		visible(parentVisible, own, false)
}

// mergeAttribute projects one physical attribute through its override.
// dataType only ever affects presentation: the physical DataType is what
// the query engine validates against, never the override's DataType.
func mergeAttribute(entity string, phys AttributePhysical, ov *AttributeOverride, parentVisible bool) (Attribute, bool) {
	a := Attribute{
		Name:         phys.Name,
		DisplayName:  titleCase(phys.Name),
		DataType:     string(phys.DataType),
		KeyType:      phys.KeyType,
		Cardinality:  phys.Cardinality,
		Entity:       entity,
		column:       phys.Column,
		physicalType: phys.DataType,
	}
	var own *bool
	if ov != nil {
		a.DisplayName = strOr(ov.DisplayName, a.DisplayName)
		a.Description = strOr(ov.Description, "")
		a.Placeholder = strOr(ov.Placeholder, "")
		a.Scale = intOr(ov.Scale, 0)
		if ov.DataType != nil {
			a.DataType = *ov.DataType
		}
		a.DataFormat = strOr(ov.DataFormat, "")
		a.ValueMap = ov.ValueMap
		a.Reference = strOr(ov.Reference, "")
		a.DisplayPriority = intOr(ov.DisplayPriority, 0)
		a.DisplayOrder = intOr(ov.DisplayOrder, 0)
		a.CurrencySymbol = strOr(ov.CurrencySymbol, "")
		a.CurrencySymbolCode = intOr(ov.CurrencySymbolCode, 0)
		a.cacheConfig = ov.CacheConfig
		own = ov.Visible
	}
	return a, visible(parentVisible, own, false)
}
