package bridge

import (
	"bytes"
	"context"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/pitabwire/outlookbridge/internal/odata"
	"github.com/pitabwire/outlookbridge/model"
)

// meSegment is the path segment naming the signed-in user.
const meSegment = "me"

func isMe(id string) bool {
	return strings.EqualFold(id, meSegment)
}

// applyQuery decodes the query options in the first argument onto coll.
// Undecodable options are logged and the collection is read unfiltered.
func (inv *Invocation) applyQuery(coll *odata.Collection) error {
	raw, err := inv.Request.Arg(0)
	if err != nil {
		return err
	}
	opts, err := model.DecodeQueryOptions(raw)
	if err != nil {
		inv.Logger.Warn("bridge: ignoring query options", zap.Error(err))
		coll.Reset()
		return nil
	}
	if opts.Top > -1 {
		coll.Top(opts.Top)
	}
	if opts.Skip > -1 {
		coll.Skip(opts.Skip)
	}
	if opts.Select != nil {
		coll.Select(*opts.Select)
	}
	if opts.Expand != nil {
		coll.Expand(*opts.Expand)
	}
	if opts.Filter != nil {
		coll.Filter(*opts.Filter)
	}
	return nil
}

func (inv *Invocation) list(coll *odata.Collection) (Call, error) {
	if err := inv.applyQuery(coll); err != nil {
		return Call{}, err
	}
	return RawCall(coll.ReadRaw), nil
}

func read(e *odata.Entity) (Call, error) {
	return RawCall(e.ReadRaw), nil
}

func (inv *Invocation) add(coll *odata.Collection) (Call, error) {
	body, err := inv.Request.Arg(0)
	if err != nil {
		return Call{}, err
	}
	return RawCall(func(ctx context.Context) (string, error) {
		return coll.AddRaw(ctx, body)
	}), nil
}

func (inv *Invocation) update(e *odata.Entity) (Call, error) {
	body, err := inv.Request.Arg(0)
	if err != nil {
		return Call{}, err
	}
	return RawCall(func(ctx context.Context) (string, error) {
		return e.UpdateRaw(ctx, body)
	}), nil
}

func remove(e *odata.Entity) (Call, error) {
	return SerializedCall(func(ctx context.Context) (any, error) {
		return nil, e.Delete(ctx)
	}), nil
}

func invoke(e *odata.Entity, action string, params ...odata.Param) (Call, error) {
	return RawCall(func(ctx context.Context) (string, error) {
		return e.InvokeRaw(ctx, action, params...)
	}), nil
}

// leaf resolves the entity addressed by the last path segment within coll.
func (inv *Invocation) leaf(coll *odata.Collection) (*odata.Entity, error) {
	id, err := inv.Request.LeafID()
	if err != nil {
		return nil, err
	}
	return coll.ByID(id), nil
}

// commentParam builds the {"Comment": ...} body shared by responses,
// replies and forwards.
func (inv *Invocation) commentParam() (odata.Param, error) {
	comment, err := inv.Request.Arg(0)
	if err != nil {
		return odata.Param{}, err
	}
	return odata.StringParam("Comment", comment), nil
}

// destinationParam builds the {"DestinationId": ...} body for copy and move.
func (inv *Invocation) destinationParam() (odata.Param, error) {
	dest, err := inv.Request.Arg(0)
	if err != nil {
		return odata.Param{}, err
	}
	return odata.StringParam("DestinationId", dest), nil
}

// recipientsParam embeds a JSON array of recipients as is and sends any
// other value as a string.
func recipientsParam(raw string) odata.Param {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) > 0 && trimmed[0] == '[' && json.Valid(trimmed) {
		return odata.RawParam("ToRecipients", trimmed)
	}
	return odata.StringParam("ToRecipients", raw)
}
