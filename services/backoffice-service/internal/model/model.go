package model

import "time"

type Company struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Status    string // active | suspended
	CreatedAt time.Time
}

type Member struct {
	ID        string
	CompanyID string
	Name      string
	Email     string
	Role      string
	CreatedAt time.Time
}

type AccessCard struct {
	ID         string
	MemberID   string
	CardNumber string
	PinHash    string
	Active     bool
	CreatedAt  time.Time
}

type Room struct {
	ID                  string
	Name                string
	Floor               int
	Capacity            int
	HourlyRate          string
	SlotDurationMinutes int
	CreatedAt           time.Time
}

type AvailabilityWindow struct {
	RoomID      string
	Weekday     int
	StartMinute int
	EndMinute   int
}

type RoomSlot struct {
	ID        string
	RoomID    string
	StartTime time.Time
	EndTime   time.Time
	Status    string // available | booked
}

type Booking struct {
	ID           string
	RoomID       string
	CompanyID    string
	MemberName   string
	MemberEmail  string
	StartTime    time.Time
	EndTime      time.Time
	Status       string // pending | confirmed | cancelled
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
}

type Contract struct {
	ID          string
	CompanyID   string
	Name        string
	Type        string
	StartDate   time.Time
	EndDate     time.Time
	RenewalDate *time.Time
	Status      string // active | inactive | terminated | expired
	CreatedAt   time.Time
}

type Document struct {
	ID          string
	CompanyID   string
	ContractID  string
	Filename    string
	ContentType string
	SizeBytes   int64
	ObjectURL   string
	CreatedAt   time.Time
}

type Ticket struct {
	ID          string
	CompanyID   string
	Subject     string
	Description string
	Priority    string // low | normal | high
	Status      string // open | in_progress | closed
	CreatedAt   time.Time
}
