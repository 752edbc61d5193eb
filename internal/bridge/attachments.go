package bridge

import "github.com/pitabwire/outlookbridge/internal/odata"

// Path offsets, counted from the end, of the attachment routes.
//
//	list, add:     me/{messages|events}/{parent}/attachments
//	get, update,
//	delete:        me/{messages|events}/{parent}/attachments/{id}
//	item:          me/{messages|events}/{parent}/attachments/{id}/item
const (
	listParentOffset = 2
	listTypeOffset   = 3

	entityParentOffset = 3
	entityTypeOffset   = 4

	itemIDOffset     = 2
	itemParentOffset = 4
	itemTypeOffset   = 5
)

// attachmentsOf resolves the attachments collection of the message or event
// named in the path.
func (inv *Invocation) attachmentsOf(parentOffset, typeOffset int) (*odata.Collection, error) {
	parentID, err := inv.Request.IDAt(parentOffset)
	if err != nil {
		return nil, err
	}
	kind, err := inv.Request.ParentType(typeOffset)
	if err != nil {
		return nil, err
	}
	return inv.Client.Me().Collection(string(kind)).ByID(parentID).Collection("attachments"), nil
}

func (inv *Invocation) attachment() (*odata.Entity, error) {
	coll, err := inv.attachmentsOf(entityParentOffset, entityTypeOffset)
	if err != nil {
		return nil, err
	}
	return inv.leaf(coll)
}

func getAttachments(inv *Invocation) (Call, error) {
	coll, err := inv.attachmentsOf(listParentOffset, listTypeOffset)
	if err != nil {
		return Call{}, err
	}
	return inv.list(coll)
}

func getAttachment(inv *Invocation) (Call, error) {
	e, err := inv.attachment()
	if err != nil {
		return Call{}, err
	}
	return read(e)
}

// getAttachmentItem reads the message or event embedded in an item
// attachment.
func getAttachmentItem(inv *Invocation) (Call, error) {
	coll, err := inv.attachmentsOf(itemParentOffset, itemTypeOffset)
	if err != nil {
		return Call{}, err
	}
	id, err := inv.Request.IDAt(itemIDOffset)
	if err != nil {
		return Call{}, err
	}
	return read(coll.ByID(id).Cast(inv.Client.ItemAttachmentType()).Property("Item"))
}

func addAttachment(inv *Invocation) (Call, error) {
	coll, err := inv.attachmentsOf(listParentOffset, listTypeOffset)
	if err != nil {
		return Call{}, err
	}
	return inv.add(coll)
}

func updateAttachment(inv *Invocation) (Call, error) {
	e, err := inv.attachment()
	if err != nil {
		return Call{}, err
	}
	return inv.update(e)
}

func deleteAttachment(inv *Invocation) (Call, error) {
	e, err := inv.attachment()
	if err != nil {
		return Call{}, err
	}
	return remove(e)
}
