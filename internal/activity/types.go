package activity

import "time"

const (
	EntityCustomer    = "customer"
	EntityOrder       = "order"
	EntityMeasurement = "measurement"
	EntityAppointment = "appointment"
	EntityPayment     = "payment"
)

const (
	VerbCreate = "create"
	VerbUpdate = "update"
	VerbDelete = "delete"
	VerbPaid   = "paid"
)

// Action joins an entity and a verb, e.g. "order.delete".
func Action(entity, verb string) string {
	return entity + "." + verb
}

var AllEntities = []string{
	EntityCustomer,
	EntityOrder,
	EntityMeasurement,
	EntityAppointment,
	EntityPayment,
}

type Event struct {
	Timestamp  time.Time
	Action     string
	EntityType string
	EntityID   int64
	Details    any
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   int64
	Limit      int
}

type RecordedEvent struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"`
	EntityID    int64     `json:"entity_id"`
	DetailsJSON string    `json:"details"`
}
