package domain

import "fmt"

// Status values are closed per-kind enums. The free-text (kind, name) pairs
// arriving over the CLI and API are parsed once at the boundary; inside the
// engine only typed values circulate.

type ItemStatus string

const (
	ItemAvailable     ItemStatus = "available"
	ItemRequested     ItemStatus = "requested"
	ItemOnLoan        ItemStatus = "on_loan"
	ItemInCalibration ItemStatus = "in_calibration"
	ItemRetired       ItemStatus = "retired"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
	RequestClosed   RequestStatus = "closed"
)

type RentalStatus string

const (
	RentalActive   RentalStatus = "active"
	RentalOverdue  RentalStatus = "overdue"
	RentalReturned RentalStatus = "returned"
)

type CalibrationStatus string

const (
	CalibrationScheduled CalibrationStatus = "scheduled"
	CalibrationCompleted CalibrationStatus = "completed"
	CalibrationFailed    CalibrationStatus = "failed"
)

type RequestType string

const (
	RequestBorrow      RequestType = "borrow"
	RequestCalibration RequestType = "calibration"
)

func ParseItemStatus(s string) (ItemStatus, error) {
	switch v := ItemStatus(s); v {
	case ItemAvailable, ItemRequested, ItemOnLoan, ItemInCalibration, ItemRetired:
		return v, nil
	}
	return "", fmt.Errorf("unknown item status %q", s)
}

func ParseRequestStatus(s string) (RequestStatus, error) {
	switch v := RequestStatus(s); v {
	case RequestPending, RequestApproved, RequestRejected, RequestClosed:
		return v, nil
	}
	return "", fmt.Errorf("unknown request status %q", s)
}

func ParseRentalStatus(s string) (RentalStatus, error) {
	switch v := RentalStatus(s); v {
	case RentalActive, RentalOverdue, RentalReturned:
		return v, nil
	}
	return "", fmt.Errorf("unknown rental status %q", s)
}

func ParseCalibrationStatus(s string) (CalibrationStatus, error) {
	switch v := CalibrationStatus(s); v {
	case CalibrationScheduled, CalibrationCompleted, CalibrationFailed:
		return v, nil
	}
	return "", fmt.Errorf("unknown calibration status %q", s)
}

func ParseRequestType(s string) (RequestType, error) {
	switch v := RequestType(s); v {
	case RequestBorrow, RequestCalibration:
		return v, nil
	}
	return "", fmt.Errorf("unknown request type %q", s)
}

// Terminal reports whether the request can never change again on its own.
// A request stays non-terminal while approved: it closes only when its
// rental or calibration reaches a terminal state.
func (s RequestStatus) Terminal() bool {
	return s == RequestRejected || s == RequestClosed
}

func (s RentalStatus) Terminal() bool { return s == RentalReturned }

func (s CalibrationStatus) Terminal() bool {
	return s == CalibrationCompleted || s == CalibrationFailed
}
