package openapi

import (
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

// IndexedOperation is one operation of the document.
type IndexedOperation struct {
	OperationID  string
	Method       string
	PathTemplate string
	RequestBody  *openapi3.RequestBody
}

// Index looks operations up by operationId.
type Index struct {
	doc        *openapi3.T
	operations map[string]IndexedOperation
}

// NewIndex indexes every operation of doc that has an operationId.
func NewIndex(doc *openapi3.T) *Index {
	idx := &Index{doc: doc, operations: make(map[string]IndexedOperation)}
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			if op.OperationID == "" {
				continue
			}
			var body *openapi3.RequestBody
			if op.RequestBody != nil {
				body = op.RequestBody.Value
			}
			idx.operations[op.OperationID] = IndexedOperation{
				OperationID:  op.OperationID,
				Method:       method,
				PathTemplate: path,
				RequestBody:  body,
			}
		}
	}
	return idx
}

// Document returns the indexed document.
func (idx *Index) Document() *openapi3.T {
	return idx.doc
}

// GetOperation returns the operation with the given id.
func (idx *Index) GetOperation(operationID string) (IndexedOperation, bool) {
	op, ok := idx.operations[operationID]
	return op, ok
}

// AllOperationIDs returns every indexed operationId, sorted.
func (idx *Index) AllOperationIDs() []string {
	ids := make([]string, 0, len(idx.operations))
	for id := range idx.operations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidateRequest checks a decoded JSON body against the operation's
// request schema.
func (idx *Index) ValidateRequest(operationID string, body any) error {
	op, ok := idx.operations[operationID]
	if !ok {
		return fmt.Errorf("openapi: operation %q not found", operationID)
	}
	if op.RequestBody == nil {
		return nil
	}
	mt := op.RequestBody.Content.Get("application/json")
	if mt == nil || mt.Schema == nil || mt.Schema.Value == nil {
		return nil
	}
	return mt.Schema.Value.VisitJSON(body)
}
