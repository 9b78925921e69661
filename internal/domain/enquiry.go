package domain

import "time"

type LeadStatus string

const (
	StatusNew       LeadStatus = "new"
	StatusContacted LeadStatus = "contacted"
	StatusBooked    LeadStatus = "booked"
)

func ParseLeadStatus(s string) (LeadStatus, bool) {
	switch st := LeadStatus(s); st {
	case StatusNew, StatusContacted, StatusBooked:
		return st, true
	}
	return "", false
}

// LeadKind selects one of the two enquiry tables.
type LeadKind string

const (
	LeadStays  LeadKind = "stays"
	LeadEvents LeadKind = "events"
)

func ParseLeadKind(s string) (LeadKind, bool) {
	switch k := LeadKind(s); k {
	case LeadStays, LeadEvents:
		return k, true
	}
	return "", false
}

func (k LeadKind) Table() Table {
	if k == LeadEvents {
		return TableEventEnquiries
	}
	return TableStayEnquiries
}

type StayEnquiry struct {
	ID        ID         `json:"id,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Checkin   string     `json:"checkin"`
	Checkout  string     `json:"checkout"`
	Guests    int        `json:"guests"`
	Message   string     `json:"message"`
	Source    string     `json:"source"`
	Status    LeadStatus `json:"status"`
}

type EventEnquiry struct {
	ID           ID         `json:"id,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	EventDate    string     `json:"event_date"`
	EventType    EventType  `json:"event_type"`
	Guests       int        `json:"guests"`
	Requirements string     `json:"requirements"`
	Source       string     `json:"source"`
	Status       LeadStatus `json:"status"`
}

type EventType string

const (
	EventHaldi     EventType = "Haldi"
	EventMehendi   EventType = "Mehendi"
	EventCocktail  EventType = "Cocktail"
	EventBirthday  EventType = "Birthday"
	EventCorporate EventType = "Corporate"
	EventWedding   EventType = "Wedding"
	EventOther     EventType = "Other"
)

var EventTypes = []EventType{
	EventHaldi, EventMehendi, EventCocktail, EventBirthday, EventCorporate, EventWedding, EventOther,
}

// ParseEventType is lenient: anything unrecognised is an "Other" event.
func ParseEventType(s string) EventType {
	for _, t := range EventTypes {
		if string(t) == s {
			return t
		}
	}
	return EventOther
}
