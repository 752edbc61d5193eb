// Package openapi describes the bridge's HTTP surface as an OpenAPI 3
// document and indexes its operations so request bodies can be checked
// against their schemas.
package openapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

// Route prefixes of the HTTP surface.
const (
	ActionsPath = "/bridge/actions"
	HealthPath  = "/health"
	ReadyPath   = "/ready"
)

const (
	schemaReply = "Reply"
	schemaError = "Error"
	schemaArgs  = "Arguments"
)

func componentRef(name string, s *openapi3.Schema) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, s)
}

func argumentsSchema() *openapi3.Schema {
	s := openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
	s.Description = "Access token, service root, resource path, then the action's own arguments."
	return s
}

func replySchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("status", openapi3.NewStringSchema().WithEnum("OK", "ERROR")).
		WithProperty("body", openapi3.NewStringSchema()).
		WithProperty("code", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema())
	s.Required = []string{"status"}
	return s
}

func errorSchema() *openapi3.Schema {
	envelope := openapi3.NewObjectSchema().
		WithProperty("code", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("trace_id", openapi3.NewStringSchema())
	envelope.Required = []string{"code", "message"}

	s := openapi3.NewObjectSchema().WithProperty("error", envelope)
	s.Required = []string{"error"}
	return s
}

// Build returns the OpenAPI document for the given actions. Every action is
// exposed as POST {ActionsPath}/{action} with the action name as its
// operationId.
func Build(actions []string, version string) (*openapi3.T, error) {
	schemas := map[string]*openapi3.Schema{
		schemaReply: replySchema(),
		schemaError: errorSchema(),
		schemaArgs:  argumentsSchema(),
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Outlook bridge",
			Description: "Named Outlook mail, calendar and contact operations over a flat argument list.",
			Version:     version,
		},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}
	for name, s := range schemas {
		doc.Components.Schemas[name] = openapi3.NewSchemaRef("", s)
	}

	errorResponse := func(desc string) *openapi3.Response {
		return openapi3.NewResponse().WithDescription(desc).WithJSONSchemaRef(componentRef(schemaError, schemas[schemaError]))
	}

	sorted := append([]string(nil), actions...)
	sort.Strings(sorted)
	for _, action := range sorted {
		op := openapi3.NewOperation()
		op.OperationID = action
		op.Summary = "Invoke " + action
		op.Tags = []string{"actions"}
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithJSONSchemaRef(componentRef(schemaArgs, schemas[schemaArgs])),
		}
		op.AddResponse(http.StatusOK, openapi3.NewResponse().
			WithDescription("The call's reply. Failures of the call itself are reported with status ERROR.").
			WithJSONSchemaRef(componentRef(schemaReply, schemas[schemaReply])))
		op.AddResponse(http.StatusBadRequest, errorResponse("The body is not a JSON array of strings."))
		op.AddResponse(http.StatusGatewayTimeout, errorResponse("No reply arrived in time."))
		doc.Paths.Set(ActionsPath+"/"+action, &openapi3.PathItem{Post: op})
	}

	list := openapi3.NewOperation()
	list.OperationID = "listActions"
	list.Summary = "List the available actions"
	list.AddResponse(http.StatusOK, openapi3.NewResponse().
		WithDescription("Sorted action names.").
		WithJSONSchema(openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())))
	doc.Paths.Set(ActionsPath, &openapi3.PathItem{Get: list})

	for _, ep := range []struct{ id, path, desc string }{
		{"health", HealthPath, "Liveness"},
		{"ready", ReadyPath, "Readiness"},
	} {
		op := openapi3.NewOperation()
		op.OperationID = ep.id
		op.Summary = ep.desc
		op.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription(ep.desc+" status"))
		doc.Paths.Set(ep.path, &openapi3.PathItem{Get: op})
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("openapi: invalid document: %w", err)
	}
	return doc, nil
}
