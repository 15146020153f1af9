package domain

type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Item struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	CategoryID    string     `json:"category_id"`
	Specification *string    `json:"specification,omitempty"`
	SerialNumber  *string    `json:"serial_number,omitempty"`
	Status        ItemStatus `json:"status" enum:"available,requested,on_loan,in_calibration,retired"`
	CreatedAt     string     `json:"created_at" format:"date-time"`
	UpdatedAt     string     `json:"updated_at" format:"date-time"`
}

type Request struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	ItemID      string        `json:"item_id"`
	Type        RequestType   `json:"type" enum:"borrow,calibration"`
	Reason      *string       `json:"reason,omitempty"`
	ApprovedBy  *string       `json:"approved_by,omitempty"`
	RequestDate string        `json:"request_date" format:"date-time"`
	Status      RequestStatus `json:"status" enum:"pending,approved,rejected,closed"`
	CreatedAt   string        `json:"created_at" format:"date-time"`
	UpdatedAt   string        `json:"updated_at" format:"date-time"`
}

type Rental struct {
	ID               string       `json:"id"`
	RequestID        string       `json:"request_id"`
	StartDate        string       `json:"start_date" format:"date-time"`
	EndDate          string       `json:"end_date" format:"date-time"`
	ActualReturnDate *string      `json:"actual_return_date,omitempty" format:"date-time"`
	FineCents        *int64       `json:"fine_cents,omitempty"`
	Status           RentalStatus `json:"status" enum:"active,overdue,returned"`
	CreatedAt        string       `json:"created_at" format:"date-time"`
	UpdatedAt        string       `json:"updated_at" format:"date-time"`
}

type Calibration struct {
	ID              string            `json:"id"`
	RequestID       string            `json:"request_id"`
	CalibrationDate string            `json:"calibration_date" format:"date-time"`
	Result          *string           `json:"result,omitempty"`
	CertificateURL  *string           `json:"certificate_url,omitempty"`
	Status          CalibrationStatus `json:"status" enum:"scheduled,completed,failed"`
	CreatedAt       string            `json:"created_at" format:"date-time"`
	UpdatedAt       string            `json:"updated_at" format:"date-time"`
}

// HistoryEntry is an append-only audit row; exactly one per item state transition.
type HistoryEntry struct {
	ID          string  `json:"id"`
	ItemID      string  `json:"item_id"`
	Activity    string  `json:"activity"`
	RequestID   *string `json:"request_id,omitempty"`
	Description *string `json:"description,omitempty"`
	PerformedBy string  `json:"performed_by"`
	Date        string  `json:"date" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type Notification struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Document struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	FileURL    string `json:"file_url"`
	UploadedBy string `json:"uploaded_by"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
