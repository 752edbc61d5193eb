package bridge

import "github.com/pitabwire/outlookbridge/internal/odata"

func messagesOf(c *odata.Client, parentID string) *odata.Collection {
	if isMe(parentID) {
		return c.Me().Collection("messages")
	}
	return c.Me().Collection("folders").ByID(parentID).Collection("messages")
}

func (inv *Invocation) message() (*odata.Entity, error) {
	return inv.leaf(inv.Client.Me().Collection("messages"))
}

func getMessages(inv *Invocation) (Call, error) {
	parentID, err := inv.Request.ParentID()
	if err != nil {
		return Call{}, err
	}
	return inv.list(messagesOf(inv.Client, parentID))
}

func getMessage(inv *Invocation) (Call, error) {
	e, err := inv.message()
	if err != nil {
		return Call{}, err
	}
	return read(e)
}

func addMessage(inv *Invocation) (Call, error) {
	parentID, err := inv.Request.ParentID()
	if err != nil {
		return Call{}, err
	}
	return inv.add(messagesOf(inv.Client, parentID))
}

func updateMessage(inv *Invocation) (Call, error) {
	e, err := inv.message()
	if err != nil {
		return Call{}, err
	}
	return inv.update(e)
}

func deleteMessage(inv *Invocation) (Call, error) {
	e, err := inv.message()
	if err != nil {
		return Call{}, err
	}
	return remove(e)
}

func relocateMessage(action string) Handler {
	return func(inv *Invocation) (Call, error) {
		e, err := inv.message()
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

// messageAction returns the handler for a bound message action that takes
// no parameters, such as send or createreply.
func messageAction(action string) Handler {
	return func(inv *Invocation) (Call, error) {
		e, err := inv.message()
		if err != nil {
			return Call{}, err
		}
		return invoke(e, action)
	}
}

func replyToMessage(action string) Handler {
	return func(inv *Invocation) (Call, error) {
		e, err := inv.message()
		if err != nil {
			return Call{}, err
		}
		comment, err := inv.commentParam()
		if err != nil {
			return Call{}, err
		}
		return invoke(e, action, comment)
	}
}

func forwardMessage(inv *Invocation) (Call, error) {
	e, err := inv.message()
	if err != nil {
		return Call{}, err
	}
	comment, err := inv.commentParam()
	if err != nil {
		return Call{}, err
	}
	recipients, err := inv.Request.Arg(1)
	if err != nil {
		return Call{}, err
	}
	return invoke(e, "forward", comment, recipientsParam(recipients))
}
