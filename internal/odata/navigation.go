package odata

import (
	"net/url"
	"strconv"
	"strings"
)

// Entity addresses a single resource, such as me/events/{id}.
type Entity struct {
	client   *Client
	segments []string
}

// Collection addresses a resource set, such as me/events, and carries the
// query options applied when it is read.
type Collection struct {
	client   *Client
	segments []string
	query    Query
}

// Query holds OData system query options. Unset options are nil.
type Query struct {
	Top    *int
	Skip   *int
	Select *string
	Expand *string
	Filter *string
}

func extend(segments []string, more ...string) []string {
	out := make([]string, 0, len(segments)+len(more))
	out = append(out, segments...)
	return append(out, more...)
}

// Collection navigates to a collection-valued property.
func (e *Entity) Collection(name string) *Collection {
	return &Collection{client: e.client, segments: extend(e.segments, name)}
}

// Property navigates to a single-valued navigation property.
func (e *Entity) Property(name string) *Entity {
	return &Entity{client: e.client, segments: extend(e.segments, name)}
}

// Cast appends a type cast segment.
func (e *Entity) Cast(qualifiedType string) *Entity {
	return e.Property(qualifiedType)
}

// Path returns the resource path relative to the service root.
func (e *Entity) Path() string {
	return strings.Join(e.segments, "/")
}

// URL returns the absolute resource URL.
func (e *Entity) URL() string {
	return e.client.resourceURL(e.segments)
}

// ByID addresses one member of the collection.
func (c *Collection) ByID(id string) *Entity {
	return &Entity{client: c.client, segments: extend(c.segments, id)}
}

// Top sets $top.
func (c *Collection) Top(n int) *Collection {
	c.query.Top = &n
	return c
}

// Skip sets $skip.
func (c *Collection) Skip(n int) *Collection {
	c.query.Skip = &n
	return c
}

// Select sets $select.
func (c *Collection) Select(v string) *Collection {
	c.query.Select = &v
	return c
}

// Expand sets $expand.
func (c *Collection) Expand(v string) *Collection {
	c.query.Expand = &v
	return c
}

// Filter sets $filter.
func (c *Collection) Filter(v string) *Collection {
	c.query.Filter = &v
	return c
}

// Reset clears every query option.
func (c *Collection) Reset() *Collection {
	c.query = Query{}
	return c
}

// Query returns the current query options.
func (c *Collection) Query() Query {
	return c.query
}

// Path returns the resource path relative to the service root.
func (c *Collection) Path() string {
	return strings.Join(c.segments, "/")
}

// URL returns the absolute resource URL including query options.
func (c *Collection) URL() string {
	u := c.client.resourceURL(c.segments)
	if q := c.query.Encode(); q != "" {
		u += "?" + q
	}
	return u
}

// Encode renders the options as a query string. Keys keep their literal "$"
// prefix and appear in a fixed order; spaces are sent as %20.
func (q Query) Encode() string {
	var parts []string
	add := func(key, value string) {
		parts = append(parts, key+"="+strings.ReplaceAll(url.QueryEscape(value), "+", "%20"))
	}
	if q.Filter != nil {
		add("$filter", *q.Filter)
	}
	if q.Select != nil {
		add("$select", *q.Select)
	}
	if q.Expand != nil {
		add("$expand", *q.Expand)
	}
	if q.Top != nil {
		add("$top", strconv.Itoa(*q.Top))
	}
	if q.Skip != nil {
		add("$skip", strconv.Itoa(*q.Skip))
	}
	return strings.Join(parts, "&")
}
