// Package portal defines the record types stored in the hosted backend's
// named collections. Column names follow the backend schema (snake_case);
// JSON field names follow the portal API (camelCase).
package portal

// Event represents a row in the events collection.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Location    string `json:"location"`
	Category    string `json:"category"` // Social, Academic, Administrative, Sports
}

// EventRow is the backend column shape for an Event.
type EventRow struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Location    string `json:"location"`
	Category    string `json:"category"`
}

// Event converts the row to its API shape.
func (r EventRow) Event() Event {
	return Event{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Date:        r.Date,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Location:    r.Location,
		Category:    r.Category,
	}
}

// Row converts the event to its backend column shape. The ID is omitted so
// inserts let the backend assign one.
func (e Event) Row() EventRow {
	return EventRow{
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Location:    e.Location,
		Category:    e.Category,
	}
}

// NewsArticle represents a row in the news collection.
type NewsArticle struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Content  string `json:"content"`
	Date     string `json:"date"`
	Author   string `json:"author"`
	Category string `json:"category"` // Announcement, Press Release, Hall News
	ImageURL string `json:"image_url"`
}

// Document represents a row in the documents collection. Size is stored
// pre-formatted (e.g. "1.2 MB"), matching the backend schema.
type Document struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Size       string `json:"size"`
	Date       string `json:"date"`
	Type       string `json:"type"`
	URL        string `json:"url"`
	Category   string `json:"category"`
	Restricted bool   `json:"restricted"`
}

// MaintenanceRequest represents a row in the maintenance_requests collection.
type MaintenanceRequest struct {
	ID          string `json:"id,omitempty"`
	Block       string `json:"block"`
	Urgency     string `json:"urgency"`
	Nature      string `json:"nature"`
	Description string `json:"description"`
	Status      string `json:"status"` // Pending, In Progress, Completed
	CreatedAt   string `json:"created_at,omitempty"`
}

// MaintenanceStatuses are the accepted values for MaintenanceRequest.Status.
var MaintenanceStatuses = []string{"Pending", "In Progress", "Completed"}

// Profile represents a row in the profiles collection. Role drives the admin
// capability: the literal "admin" grants access to the management subtree.
type Profile struct {
	ID   string  `json:"id"`
	Role *string `json:"role"`
}
