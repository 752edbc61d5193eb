package model

import (
	"fmt"
	"strings"
)

// ContainerType names the kind of item an attachment hangs off.
type ContainerType string

// Attachments can only belong to a mail message or a calendar event.
const (
	ContainerMessages ContainerType = "messages"
	ContainerEvents   ContainerType = "events"
)

// InvocationRequest is the decoded form of the flat argument list passed by
// the application layer. The first three positions are always the access
// token, the service root and the resource path; everything after that is
// method specific.
type InvocationRequest struct {
	Token        string
	ServiceRoot  string
	ResourcePath string
	Args         []string
}

// DecodeRequest builds an InvocationRequest from the flat argument list.
// Values are taken verbatim; URL well-formedness is left to the remote call.
func DecodeRequest(flat []string) (InvocationRequest, error) {
	if len(flat) < 3 {
		return InvocationRequest{}, NewMalformedRequestError(
			fmt.Sprintf("expected at least 3 arguments (token, service root, resource path), got %d", len(flat)),
		)
	}

	args := make([]string, len(flat)-3)
	copy(args, flat[3:])

	return InvocationRequest{
		Token:        flat[0],
		ServiceRoot:  flat[1],
		ResourcePath: flat[2],
		Args:         args,
	}, nil
}

// Arg returns the i-th method argument.
func (r InvocationRequest) Arg(i int) (string, error) {
	if i < 0 || i >= len(r.Args) {
		return "", NewMalformedRequestError(
			fmt.Sprintf("method argument %d is required, got %d arguments", i, len(r.Args)),
		)
	}
	return r.Args[i], nil
}

// IDAt returns the segment indexFromEnd positions from the end of the
// resource path (1 is the last segment).
func (r InvocationRequest) IDAt(indexFromEnd int) (string, error) {
	return IDAt(r.ResourcePath, indexFromEnd)
}

// LeafID returns the last path segment, the id of the targeted entity.
func (r InvocationRequest) LeafID() (string, error) {
	return r.IDAt(1)
}

// ParentID returns the id of the entity's immediate parent.
func (r InvocationRequest) ParentID() (string, error) {
	return r.IDAt(2)
}

// ContainerID returns the id of the entity's grandparent container.
func (r InvocationRequest) ContainerID() (string, error) {
	return r.IDAt(3)
}

// ParentType resolves the container type segment at indexFromEnd.
func (r InvocationRequest) ParentType(indexFromEnd int) (ContainerType, error) {
	return ParentType(r.ResourcePath, indexFromEnd)
}

// IDAt returns the segment indexFromEnd positions from the end of path.
// Requesting exactly the segment count yields the first segment; anything
// past that, or below 1, is out of range.
func IDAt(path string, indexFromEnd int) (string, error) {
	segments := splitPath(path)
	if indexFromEnd < 1 || indexFromEnd > len(segments) {
		return "", NewPathIndexOutOfRangeError(path, indexFromEnd, len(segments))
	}
	return segments[len(segments)-indexFromEnd], nil
}

// ParentType returns the container type named by the segment at
// indexFromEnd. The match is case-insensitive.
func ParentType(path string, indexFromEnd int) (ContainerType, error) {
	value, err := IDAt(path, indexFromEnd)
	if err != nil {
		return "", err
	}
	switch t := ContainerType(strings.ToLower(value)); t {
	case ContainerMessages, ContainerEvents:
		return t, nil
	default:
		return "", NewUnrecognizedContainerTypeError(value)
	}
}

// splitPath splits on "/" and drops trailing empty segments.
func splitPath(path string) []string {
	segments := strings.Split(path, "/")
	for len(segments) > 0 && segments[len(segments)-1] == "" {
		segments = segments[:len(segments)-1]
	}
	return segments
}
