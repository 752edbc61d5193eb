package odata

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// Param is one named parameter of a bound action. Value is raw JSON.
type Param struct {
	Name  string
	Value json.RawMessage
}

// StringParam encodes v as a JSON string.
func StringParam(name, v string) Param {
	b, _ := json.Marshal(v)
	return Param{Name: name, Value: b}
}

// RawParam embeds raw, which must already be valid JSON.
func RawParam(name string, raw []byte) Param {
	return Param{Name: name, Value: raw}
}

// encodeParams renders params as a JSON object, keeping their order.
func encodeParams(params []Param) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range params {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		if !json.Valid(p.Value) {
			return nil, fmt.Errorf("odata: parameter %q is not valid JSON", p.Name)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(p.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ReadRaw fetches the collection with its query options applied.
func (c *Collection) ReadRaw(ctx context.Context) (string, error) {
	return c.client.send(ctx, http.MethodGet, c.URL(), nil)
}

// AddRaw posts payload as a new member of the collection and returns the
// created entity.
func (c *Collection) AddRaw(ctx context.Context, payload string) (string, error) {
	return c.client.send(ctx, http.MethodPost, c.client.resourceURL(c.segments), []byte(payload))
}

// ReadRaw fetches the entity.
func (e *Entity) ReadRaw(ctx context.Context) (string, error) {
	return e.client.send(ctx, http.MethodGet, e.URL(), nil)
}

// UpdateRaw patches the entity with payload and returns the updated entity.
func (e *Entity) UpdateRaw(ctx context.Context, payload string) (string, error) {
	return e.client.send(ctx, http.MethodPatch, e.URL(), []byte(payload))
}

// Delete removes the entity.
func (e *Entity) Delete(ctx context.Context) error {
	_, err := e.client.send(ctx, http.MethodDelete, e.URL(), nil)
	return err
}

// InvokeRaw posts to the bound action {entity}/{action}. Without params the
// request has no body.
func (e *Entity) InvokeRaw(ctx context.Context, action string, params ...Param) (string, error) {
	var body []byte
	if len(params) > 0 {
		var err error
		if body, err = encodeParams(params); err != nil {
			return "", err
		}
	}
	return e.client.send(ctx, http.MethodPost, e.Property(action).URL(), body)
}

func (c *Client) send(ctx context.Context, method, url string, body []byte) (string, error) {
	resp, err := c.transport.execute(ctx, c.http, request{method: method, url: url, body: body})
	if err != nil {
		return "", err
	}
	return string(resp), nil
}
