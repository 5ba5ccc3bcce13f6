package model

// TicketState is the open/closed state of a ticket
type TicketState string

const (
	TicketStateOpen   TicketState = "open"
	TicketStateClosed TicketState = "closed"
)

// Ticket is an issue in the tracking repository as returned by the ticket store
type Ticket struct {
	Number int
	Title  string
	Body   string
	State  TicketState
	Labels []string
	URL    string
}

// NewTicket is the payload to create a ticket
type NewTicket struct {
	Title  string
	Body   string
	Labels []string
}

// TicketUpdate is a partial update. Nil fields are left unchanged.
type TicketUpdate struct {
	Body  *string
	State *TicketState
}
