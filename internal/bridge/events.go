package bridge

import "github.com/pitabwire/outlookbridge/internal/odata"

func eventsOf(c *odata.Client, parentID string) *odata.Collection {
	if isMe(parentID) {
		return c.Me().Collection("events")
	}
	return c.Me().Collection("calendars").ByID(parentID).Collection("events")
}

func getEvents(inv *Invocation) (Call, error) {
	parentID, err := inv.Request.ParentID()
	if err != nil {
		return Call{}, err
	}
	return inv.list(eventsOf(inv.Client, parentID))
}

func getEvent(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("events"))
	if err != nil {
		return Call{}, err
	}
	return read(e)
}

func addEvent(inv *Invocation) (Call, error) {
	parentID, err := inv.Request.ParentID()
	if err != nil {
		return Call{}, err
	}
	return inv.add(eventsOf(inv.Client, parentID))
}

func updateEvent(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("events"))
	if err != nil {
		return Call{}, err
	}
	return inv.update(e)
}

func deleteEvent(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("events"))
	if err != nil {
		return Call{}, err
	}
	return remove(e)
}

// respondToEvent returns the handler for a meeting response action.
func respondToEvent(action string) Handler {
	return func(inv *Invocation) (Call, error) {
		e, err := inv.leaf(inv.Client.Me().Collection("events"))
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
