package bridge

import "sort"

// catalog is the closed set of actions the bridge serves.
var catalog = map[string]Handler{
	"getCalendars":   getCalendars,
	"getCalendar":    getCalendar,
	"addCalendar":    addCalendar,
	"updateCalendar": updateCalendar,
	"deleteCalendar": deleteCalendar,

	"getCalendarGroups":   getCalendarGroups,
	"getCalendarGroup":    getCalendarGroup,
	"addCalendarGroup":    addCalendarGroup,
	"updateCalendarGroup": updateCalendarGroup,
	"deleteCalendarGroup": deleteCalendarGroup,

	"getContacts":   getContacts,
	"getContact":    getContact,
	"addContact":    addContact,
	"updateContact": updateContact,
	"deleteContact": deleteContact,

	"getContactFolders":   getContactFolders,
	"getContactFolder":    getContactFolder,
	"addContactFolder":    addContactFolder,
	"updateContactFolder": updateContactFolder,
	"deleteContactFolder": deleteContactFolder,

	"getEvents":         getEvents,
	"getEvent":          getEvent,
	"addEvent":          addEvent,
	"updateEvent":       updateEvent,
	"deleteEvent":       deleteEvent,
	"accept":            respondToEvent("accept"),
	"decline":           respondToEvent("decline"),
	"tentativelyAccept": respondToEvent("tentativelyaccept"),

	"getFolders":   getFolders,
	"getFolder":    getFolder,
	"addFolder":    addFolder,
	"updateFolder": updateFolder,
	"deleteFolder": deleteFolder,
	"copyFolder":   relocateFolder("copy"),
	"moveFolder":   relocateFolder("move"),

	"getMessages":    getMessages,
	"getMessage":     getMessage,
	"addMessage":     addMessage,
	"updateMessage":  updateMessage,
	"deleteMessage":  deleteMessage,
	"copyMessage":    relocateMessage("copy"),
	"moveMessage":    relocateMessage("move"),
	"createReply":    messageAction("createreply"),
	"createReplyAll": messageAction("createreplyall"),
	"createForward":  messageAction("createforward"),
	"reply":          replyToMessage("reply"),
	"replyAll":       replyToMessage("replyall"),
	"forward":        forwardMessage,
	"send":           messageAction("send"),

	"getUsers": getUsers,
	"getUser":  getUser,

	"getAttachments":      getAttachments,
	"getAttachment":       getAttachment,
	"getAttachmentItem":   getAttachmentItem,
	"addAttachment":       addAttachment,
	"updateAttachment":    updateAttachment,
	"deleteAttachment":    deleteAttachment,
	"getAttachmentAsItem": getAttachmentItem,
	"getAttachmentAsFile": getAttachment,
}

// Actions returns every action name in the catalog, sorted.
func Actions() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
