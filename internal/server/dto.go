package server

type CreateCategoryRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type CreateItemRequest struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	CategoryID    string `json:"category_id"`
	Specification string `json:"specification,omitempty"`
	SerialNumber  string `json:"serial_number,omitempty"`
}

type SubmitRequestRequest struct {
	ItemID string `json:"item_id"`
	Type   string `json:"type" enum:"borrow,calibration"`
	Reason string `json:"reason,omitempty"`
	// UserID defaults to the authenticated actor.
	UserID string `json:"user_id,omitempty"`
}

type DecideRequestRequest struct {
	Outcome         string `json:"outcome" enum:"approve,reject"`
	EndDate         string `json:"end_date,omitempty" format:"date-time"`
	CalibrationDate string `json:"calibration_date,omitempty" format:"date-time"`
}

type ReturnRentalRequest struct {
	ReturnDate string `json:"return_date,omitempty" format:"date-time"`
}

type CompleteCalibrationRequest struct {
	Result         string `json:"result"`
	Failed         bool   `json:"failed,omitempty"`
	CertificateURL string `json:"certificate_url,omitempty"`
}

type AddDocumentRequest struct {
	Kind    string `json:"kind,omitempty"`
	FileURL string `json:"file_url"`
}

type EligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

type SweepResponse struct {
	Marked int `json:"marked"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
	// ActorID defaults to the authenticated actor.
	ActorID string `json:"actor_id,omitempty"`
}

type CreateAPIKeyResponse struct {
	ID      string `json:"id"`
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
	// Key is the plaintext secret, returned only at creation time.
	Key string `json:"key"`
}

type MeResponse struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}
