package bridge

import "github.com/pitabwire/outlookbridge/internal/odata"

func contactsOf(c *odata.Client, parentID string) *odata.Collection {
	if isMe(parentID) {
		return c.Me().Collection("contacts")
	}
	return c.Me().Collection("contactfolders").ByID(parentID).Collection("contacts")
}

func getContacts(inv *Invocation) (Call, error) {
	parentID, err := inv.Request.ParentID()
	if err != nil {
		return Call{}, err
	}
	return inv.list(contactsOf(inv.Client, parentID))
}

func getContact(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("contacts"))
	if err != nil {
		return Call{}, err
	}
	return read(e)
}

func addContact(inv *Invocation) (Call, error) {
	parentID, err := inv.Request.ParentID()
	if err != nil {
		return Call{}, err
	}
	return inv.add(contactsOf(inv.Client, parentID))
}

func updateContact(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("contacts"))
	if err != nil {
		return Call{}, err
	}
	return inv.update(e)
}

func deleteContact(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("contacts"))
	if err != nil {
		return Call{}, err
	}
	return remove(e)
}

func getContactFolders(inv *Invocation) (Call, error) {
	parentID, err := inv.Request.ParentID()
	if err != nil {
		return Call{}, err
	}
	folders := inv.Client.Me().Collection("contactfolders")
	if !isMe(parentID) {
		folders = folders.ByID(parentID).Collection("childfolders")
	}
	return inv.list(folders)
}

// getContactFolder takes the folder id from the first argument.
func getContactFolder(inv *Invocation) (Call, error) {
	folderID, err := inv.Request.Arg(0)
	if err != nil {
		return Call{}, err
	}
	return read(inv.Client.Me().Collection("contactfolders").ByID(folderID))
}

// addContactFolder always creates a child of the parent folder.
func addContactFolder(inv *Invocation) (Call, error) {
	parentID, err := inv.Request.ParentID()
	if err != nil {
		return Call{}, err
	}
	return inv.add(inv.Client.Me().Collection("contactfolders").ByID(parentID).Collection("childfolders"))
}

func updateContactFolder(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("contactfolders"))
	if err != nil {
		return Call{}, err
	}
	return inv.update(e)
}

func deleteContactFolder(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("contactfolders"))
	if err != nil {
		return Call{}, err
	}
	return remove(e)
}
