package hotel

import (
	"slices"
	"strings"

	"github.com/UnknownOlympus/hotelgate/internal/listing"
)

// Backend actions with a request body that is validated before forwarding.
const (
	ActionCreate = "Create"
	ActionUpdate = "Update"
)

// Resource describes one backend entity the gateway knows how to list and mutate.
type Resource struct {
	Name     string              // Name is the local route segment, e.g. "bookings".
	Path     string              // Path is the backend controller, e.g. "Booking".
	Required map[string][]string // Required lists mandatory body fields per action.
	Schema   listing.Schema      // Schema drives paging, search and filters of list screens.
}

// ActionPath returns the backend path of an action, e.g. "Booking/GetAll".
func (r Resource) ActionPath(action string) string {
	return r.Path + "/" + action
}

// RequiresBody reports whether action has mandatory body fields.
func (r Resource) RequiresBody(action string) bool {
	return len(r.Required[normalizeAction(action)]) > 0
}

// Missing returns the required fields of action that body does not carry or leaves blank.
func (r Resource) Missing(action string, body map[string]any) []string {
	var missing []string
	for _, field := range r.Required[normalizeAction(action)] {
		value, ok := listing.Record(body).Lookup(field)
		if !ok || value == nil {
			missing = append(missing, field)
			continue
		}
		if text, isText := value.(string); isText && strings.TrimSpace(text) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// Catalog is the set of known resources.
type Catalog struct {
	resources []Resource
}

// NewCatalog builds a catalog from resources.
func NewCatalog(resources ...Resource) *Catalog {
	return &Catalog{resources: resources}
}

// DefaultCatalog returns the hotel resources served by the backend.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Resource{
			Name: "bookings",
			Path: "Booking",
			Required: map[string][]string{
				ActionCreate: {"customerId", "roomId", "checkInDate", "checkOutDate"},
				ActionUpdate: {"id", "customerId", "roomId", "checkInDate", "checkOutDate"},
			},
			Schema: listing.Schema{
				IDField:      "id",
				SearchFields: []string{"customerName", "phone", "roomNumber", "note"},
				StatusField:  "status",
				StartField:   "checkInDate",
				EndField:     "checkOutDate",
			},
		},
		Resource{
			Name: "customers",
			Path: "Customer",
			Required: map[string][]string{
				ActionCreate: {"fullName", "phone"},
				ActionUpdate: {"id", "fullName", "phone"},
			},
			Schema: listing.Schema{
				IDField:      "id",
				SearchFields: []string{"fullName", "phone", "email", "idNumber"},
				StartField:   "createdAt",
			},
		},
		Resource{
			Name: "rooms",
			Path: "Room",
			Required: map[string][]string{
				ActionCreate: {"roomNumber", "roomType", "price"},
				ActionUpdate: {"id", "roomNumber", "roomType", "price"},
			},
			Schema: listing.Schema{
				IDField:      "id",
				SearchFields: []string{"roomNumber", "roomType"},
				StatusField:  "status",
			},
		},
		Resource{
			Name: "employees",
			Path: "Employee",
			Required: map[string][]string{
				ActionCreate: {"fullName", "email", "position"},
				ActionUpdate: {"id", "fullName", "email", "position"},
			},
			Schema: listing.Schema{
				IDField:      "id",
				SearchFields: []string{"fullName", "email", "phone", "position"},
				StartField:   "createdAt",
			},
		},
		Resource{
			Name: "discounts",
			Path: "Discount",
			Required: map[string][]string{
				ActionCreate: {"code", "percentage", "startDate", "endDate"},
				ActionUpdate: {"id", "code", "percentage", "startDate", "endDate"},
			},
			Schema: listing.Schema{
				IDField:      "id",
				SearchFields: []string{"code", "description"},
				StartField:   "startDate",
				EndField:     "endDate",
			},
		},
		Resource{
			Name: "users",
			Path: "User",
			Required: map[string][]string{
				ActionCreate: {"username", "password", "role"},
				ActionUpdate: {"id", "username", "role"},
			},
			Schema: listing.Schema{
				IDField:      "id",
				SearchFields: []string{"username", "fullName", "email"},
			},
		},
		Resource{
			Name: "workshifts",
			Path: "WorkShift",
			Required: map[string][]string{
				ActionCreate: {"employeeId", "startTime", "endTime"},
				ActionUpdate: {"id", "employeeId", "startTime", "endTime"},
			},
			Schema: listing.Schema{
				IDField:      "id",
				SearchFields: []string{"employeeName", "shiftName", "note"},
				StatusField:  "status",
				StartField:   "startTime",
				EndField:     "endTime",
			},
		},
	)
}

// Lookup finds a resource by route name or backend path, ignoring case.
func (c *Catalog) Lookup(name string) (Resource, bool) {
	for _, res := range c.resources {
		if strings.EqualFold(res.Name, name) || strings.EqualFold(res.Path, name) {
			return res, true
		}
	}
	return Resource{}, false
}

// Names returns the route names of every resource, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.resources))
	for _, res := range c.resources {
		names = append(names, res.Name)
	}
	slices.Sort(names)
	return names
}

func normalizeAction(action string) string {
	switch {
	case strings.EqualFold(action, ActionCreate):
		return ActionCreate
	case strings.EqualFold(action, ActionUpdate):
		return ActionUpdate
	default:
		return action
	}
}
