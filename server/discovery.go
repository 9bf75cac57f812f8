// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package server

import "net/http"

// discoveryPlatforms handles GET /v2/metadata/platforms.
func discoveryPlatforms(ctx *Context) (interface{}, int) {
	return ctx.Metadata.ListPlatforms(), http.StatusOK
}

// discoveryNetworks handles GET /v2/metadata/{platform}/networks.
func discoveryNetworks(ctx *Context) (interface{}, int) {
	platform := ctx.Params.ByName("platform")
	out, err := ctx.Metadata.ListNetworks(platform)
	if err != nil {
		panic(notFoundFromPathError(err))
	}
	return out, http.StatusOK
}

// discoveryEntities handles GET /v2/metadata/{platform}/{network}/entities.
func discoveryEntities(ctx *Context) (interface{}, int) {
	platform := ctx.Params.ByName("platform")
	network := ctx.Params.ByName("network")
	out, err := ctx.Metadata.ListEntities(ctx.Context, platform, network)
	if err != nil {
		panic(notFoundFromPathError(err))
	}
	return out, http.StatusOK
}

// discoveryAttributesOrValues handles both
// GET /v2/metadata/{platform}/{network}/{entity}/attributes and
// GET /v2/metadata/{platform}/{network}/{entity}/{attribute}, which httprouter
// cannot register as sibling static/wildcard children of the same :entity
// node (it panics on "wildcard segment conflicts with existing children").
// Both are registered under one wildcard segment; the literal "attributes"
// is special-cased here instead of at the router.
func discoveryAttributesOrValues(ctx *Context) (interface{}, int) {
	platform := ctx.Params.ByName("platform")
	network := ctx.Params.ByName("network")
	entity := ctx.Params.ByName("entity")
	segment := ctx.Params.ByName("segment")

	if segment == "attributes" {
		out, err := ctx.Metadata.ListAttributes(platform, network, entity)
		if err != nil {
			panic(notFoundFromPathError(err))
		}
		return out, http.StatusOK
	}

	prefix := ctx.Request.URL.Query().Get("prefix")
	out, err := ctx.Metadata.AttributeValues(ctx.Context, platform, network, entity, segment, prefix)
	if err != nil {
		panic(notFoundFromPathError(err))
	}
	return out, http.StatusOK
}

// notFoundFromPathError renders both an unknown and a hidden path as the
// same opaque 404: the two are indistinguishable to the caller by design,
// even though err.Error() (log-only) still carries the distinction.
func notFoundFromPathError(err error) *Error {
	return ENotFound(EC_RESOURCE_NOTFOUND, "not found", err)
}
