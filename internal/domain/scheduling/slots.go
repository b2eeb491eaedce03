package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/clinic/pkg/civil"
)

// Working day: hourly slots from 09:00 to 16:00 inclusive.
const (
	WorkdayStartHour = 9
	WorkdayEndHour   = 16
)

// WorkdaySlots returns the start time of every slot in ascending order.
func WorkdaySlots() []civil.Time {
	slots := make([]civil.Time, 0, WorkdayEndHour-WorkdayStartHour+1)
	for h := WorkdayStartHour; h <= WorkdayEndHour; h++ {
		slots = append(slots, civil.Time{Hour: h})
	}
	return slots
}

// AvailableSlots lists every slot of the day with whether it is free. The
// result is computed on each call and always has one entry per slot.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date civil.Date) ([]SlotAvailability, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.AvailableSlots")
	defer span.End()

	if _, err := s.doctors.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	slots := WorkdaySlots()
	out := make([]SlotAvailability, 0, len(slots))
	for _, t := range slots {
		taken, err := s.checker.HasConflict(ctx, doctorID, date, t, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, SlotAvailability{Time: t, Available: !taken})
	}
	return out, nil
}
