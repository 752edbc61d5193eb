package bridge

func getUsers(inv *Invocation) (Call, error) {
	return inv.list(inv.Client.Users())
}

// getUser takes the user id from the first argument.
func getUser(inv *Invocation) (Call, error) {
	userID, err := inv.Request.Arg(0)
	if err != nil {
		return Call{}, err
	}
	return read(inv.Client.Users().ByID(userID))
}
