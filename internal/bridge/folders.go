package bridge

func getFolders(inv *Invocation) (Call, error) {
	parentID, err := inv.Request.ParentID()
	if err != nil {
		return Call{}, err
	}
	return inv.list(inv.Client.Me().Collection("folders").ByID(parentID).Collection("childfolders"))
}

func getFolder(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("folders"))
	if err != nil {
		return Call{}, err
	}
	return read(e)
}

func addFolder(inv *Invocation) (Call, error) {
	parentID, err := inv.Request.ParentID()
	if err != nil {
		return Call{}, err
	}
	return inv.add(inv.Client.Me().Collection("folders").ByID(parentID).Collection("childfolders"))
}

func updateFolder(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("folders"))
	if err != nil {
		return Call{}, err
	}
	return inv.update(e)
}

func deleteFolder(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("folders"))
	if err != nil {
		return Call{}, err
	}
	return remove(e)
}

// relocateFolder returns the handler for copying or moving a folder.
func relocateFolder(action string) Handler {
	return func(inv *Invocation) (Call, error) {
		e, err := inv.leaf(inv.Client.Me().Collection("folders"))
		if err != nil {
			return Call{}, err
		}
		dest, err := inv.destinationParam()
		if err != nil {
			return Call{}, err
		}
		return invoke(e, action, dest)
	}
}
