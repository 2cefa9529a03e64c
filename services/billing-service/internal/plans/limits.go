package plans

// Limits represents the entitlements derived from a membership plan.
// Keep this small and stable: other services rely on these limits to enforce behavior.
type Limits struct {
	Plan               string `json:"plan"`
	MaxMembers         int32  `json:"max_members"`
	MaxMonthlyBookings int32  `json:"max_monthly_bookings"`
	MeetingRoomAccess  bool   `json:"meeting_room_access"`
}

func LimitsForPlan(plan string) Limits {
	switch plan {
	case "flex":
		return Limits{
			Plan:               "flex",
			MaxMembers:         5,
			MaxMonthlyBookings: 30,
			MeetingRoomAccess:  true,
		}
	case "resident":
		return Limits{
			Plan:               "resident",
			MaxMembers:         25,
			MaxMonthlyBookings: 120,
			MeetingRoomAccess:  true,
		}
	case "office":
		return Limits{
			Plan:               "office",
			MaxMembers:         100,
			MaxMonthlyBookings: 400,
			MeetingRoomAccess:  true,
		}
	default:
		return Limits{
			Plan:               "free",
			MaxMembers:         3,
			MaxMonthlyBookings: 10,
			MeetingRoomAccess:  true,
		}
	}
}
