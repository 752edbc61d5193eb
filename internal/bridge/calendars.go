package bridge

import (
	"strings"

	"github.com/pitabwire/outlookbridge/internal/odata"
)

// calendarsOf returns the calendars collection the parent id points at:
// the user's own calendars or those of a calendar group.
func calendarsOf(c *odata.Client, parentID string) *odata.Collection {
	if isMe(parentID) {
		return c.Me().Collection("calendars")
	}
	return c.Me().Collection("calendargroups").ByID(parentID).Collection("calendars")
}

func getCalendars(inv *Invocation) (Call, error) {
	parentID, err := inv.Request.ParentID()
	if err != nil {
		return Call{}, err
	}
	return inv.list(calendarsOf(inv.Client, parentID))
}

// getCalendar takes the calendar id from the first argument. A parent of
// "calendars" means the path already addresses the user's calendars.
func getCalendar(inv *Invocation) (Call, error) {
	parentID, err := inv.Request.ParentID()
	if err != nil {
		return Call{}, err
	}
	calendarID, err := inv.Request.Arg(0)
	if err != nil {
		return Call{}, err
	}
	if strings.EqualFold(parentID, "calendars") {
		parentID = meSegment
	}
	return read(calendarsOf(inv.Client, parentID).ByID(calendarID))
}

func addCalendar(inv *Invocation) (Call, error) {
	parentID, err := inv.Request.ParentID()
	if err != nil {
		return Call{}, err
	}
	return inv.add(calendarsOf(inv.Client, parentID))
}

func updateCalendar(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("calendars"))
	if err != nil {
		return Call{}, err
	}
	return inv.update(e)
}

func deleteCalendar(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("calendars"))
	if err != nil {
		return Call{}, err
	}
	return remove(e)
}

func getCalendarGroups(inv *Invocation) (Call, error) {
	return inv.list(inv.Client.Me().Collection("calendargroups"))
}

func getCalendarGroup(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("calendargroups"))
	if err != nil {
		return Call{}, err
	}
	return read(e)
}

func addCalendarGroup(inv *Invocation) (Call, error) {
	return inv.add(inv.Client.Me().Collection("calendargroups"))
}

func updateCalendarGroup(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("calendargroups"))
	if err != nil {
		return Call{}, err
	}
	return inv.update(e)
}

func deleteCalendarGroup(inv *Invocation) (Call, error) {
	e, err := inv.leaf(inv.Client.Me().Collection("calendargroups"))
	if err != nil {
		return Call{}, err
	}
	return remove(e)
}
