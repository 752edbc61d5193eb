package odata

import (
	"net/http"
	"net/url"
	"strings"
)

// Client is an authenticated session against one service root. It is cheap
// to build; the connection pool lives in the shared Transport.
type Client struct {
	transport   *Transport
	http        *http.Client
	serviceRoot string
}

// NewClient creates a session for serviceRoot authenticated with token.
func (t *Transport) NewClient(serviceRoot, token string) *Client {
	return &Client{
		transport:   t,
		http:        t.newHTTPClient(token),
		serviceRoot: strings.TrimRight(serviceRoot, "/"),
	}
}

// ServiceRoot returns the root URL the client was built for, without a
// trailing slash.
func (c *Client) ServiceRoot() string {
	return c.serviceRoot
}

// ItemAttachmentType returns the qualified type name used to cast an
// attachment to an item attachment.
func (c *Client) ItemAttachmentType() string {
	return c.transport.ItemAttachmentNamespace() + ".ItemAttachment"
}

// Me returns the signed-in user.
func (c *Client) Me() *Entity {
	return &Entity{client: c, segments: []string{"me"}}
}

// Users returns the users collection.
func (c *Client) Users() *Collection {
	return &Collection{client: c, segments: []string{"users"}}
}

// resourceURL joins the service root with escaped path segments.
func (c *Client) resourceURL(segments []string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.serviceRoot + "/" + strings.Join(escaped, "/")
}
