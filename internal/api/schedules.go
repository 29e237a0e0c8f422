// ABOUTME: Schedule handlers: CRUD, status transitions, guide assignment with
// ABOUTME: conflict detection, bulk recurrence expansion, and the calendar view.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/schedule"
	"github.com/saimali7/Tour-CRM-sub012/internal/store"
)

type scheduleResponse struct {
	ID          uuid.UUID  `json:"id"`
	TourID      uuid.UUID  `json:"tourId"`
	GuideID     *uuid.UUID `json:"guideId,omitempty"`
	StartsAt    time.Time  `json:"startsAt"`
	Capacity    int        `json:"capacity"`
	BookedSeats int        `json:"bookedSeats"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toScheduleResponse(sc *store.Schedule) scheduleResponse {
	return scheduleResponse{
		ID: sc.ID, TourID: sc.TourID, GuideID: sc.GuideID, StartsAt: sc.StartsAt,
		Capacity: sc.Capacity, BookedSeats: sc.BookedSeats, Status: sc.Status,
		CreatedAt: sc.CreatedAt,
	}
}

func (srv *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	var body struct {
		TourID   uuid.UUID  `json:"tourId"`
		GuideID  *uuid.UUID `json:"guideId"`
		StartsAt time.Time  `json:"startsAt"`
		Capacity int        `json:"capacity"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if body.Capacity < 1 || body.Capacity > 10000 {
		writeBadRequest(w, "capacity must be between 1 and 10000")
		return
	}
	tour, err := srv.store.GetTour(r.Context(), rc.Org.OrgID, body.TourID)
	if err != nil {
		writeInternal(w, r, "get tour for schedule", err)
		return
	}
	if tour == nil {
		writeNotFound(w, "tour not found")
		return
	}
	if body.GuideID != nil {
		if ok := srv.checkGuideFree(w, r, rc, *body.GuideID, body.StartsAt, tour.DurationMinutes, uuid.Nil); !ok {
			return
		}
	}
	sc, err := srv.store.CreateSchedule(r.Context(), rc.Org.OrgID, body.TourID, body.GuideID, body.StartsAt, body.Capacity)
	if err != nil {
		if isUniqueViolation(err) {
			writeConflict(w, "a schedule for this tour already exists at that time")
			return
		}
		writeInternal(w, r, "create schedule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleResponse(sc))
}

func (srv *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	id, err := uuidParam(r, "scheduleID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	sc, err := srv.store.GetSchedule(r.Context(), rc.Org.OrgID, id)
	if err != nil {
		writeInternal(w, r, "get schedule", err)
		return
	}
	if sc == nil {
		writeNotFound(w, "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(sc))
}

func (srv *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	from, to, err := parseRangeQuery(r, 93*24*time.Hour)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	schedules, err := srv.store.ListSchedulesInRange(r.Context(), rc.Org.OrgID, from, to)
	if err != nil {
		writeInternal(w, r, "list schedules", err)
		return
	}
	out := make([]scheduleResponse, 0, len(schedules))
	for i := range schedules {
		out = append(out, toScheduleResponse(&schedules[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (srv *Server) handleUpdateScheduleStatus(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	id, err := uuidParam(r, "scheduleID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	switch body.Status {
	case store.ScheduleOpen, store.ScheduleClosed, store.ScheduleCancelled:
	default:
		writeBadRequest(w, "status must be open, closed, or cancelled")
		return
	}
	ok, err := srv.store.UpdateScheduleStatus(r.Context(), rc.Org.OrgID, id, body.Status)
	if err != nil {
		writeInternal(w, r, "update schedule status", err)
		return
	}
	if !ok {
		writeNotFound(w, "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": body.Status})
}

func (srv *Server) handleAssignGuide(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	scheduleID, err := uuidParam(r, "scheduleID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var body struct {
		GuideID *uuid.UUID `json:"guideId"` // null unassigns
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	sc, err := srv.store.GetSchedule(r.Context(), rc.Org.OrgID, scheduleID)
	if err != nil {
		writeInternal(w, r, "get schedule for assignment", err)
		return
	}
	if sc == nil {
		writeNotFound(w, "schedule not found")
		return
	}
	if body.GuideID != nil {
		tour, err := srv.store.GetTour(r.Context(), rc.Org.OrgID, sc.TourID)
		if err != nil {
			writeInternal(w, r, "get tour for assignment", err)
			return
		}
		if tour == nil {
			// Schedules cascade-delete with their tour, so this indicates
			// data inconsistency rather than caller error.
			writeInternal(w, r, "schedule references missing tour",
				errors.New("tour row not found"))
			return
		}
		if ok := srv.checkGuideFree(w, r, rc, *body.GuideID, sc.StartsAt, tour.DurationMinutes, scheduleID); !ok {
			return
		}
	}
	updated, err := srv.store.AssignGuide(r.Context(), rc.Org.OrgID, scheduleID, body.GuideID)
	if err != nil {
		writeInternal(w, r, "assign guide", err)
		return
	}
	if updated == nil {
		writeNotFound(w, "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(updated))
}

// checkGuideFree verifies the guide exists, is active, and has no overlapping
// assignment. On false it has already written the response.
func (srv *Server) checkGuideFree(w http.ResponseWriter, r *http.Request, rc *RequestContext, guideID uuid.UUID, startsAt time.Time, durationMinutes int, excludeScheduleID uuid.UUID) bool {
	guide, err := srv.store.GetGuide(r.Context(), rc.Org.OrgID, guideID)
	if err != nil {
		writeInternal(w, r, "get guide", err)
		return false
	}
	if guide == nil || !guide.Active {
		writeBadRequest(w, "guide not found or inactive")
		return false
	}
	conflict, err := srv.store.HasGuideConflict(r.Context(), rc.Org.OrgID, guideID,
		startsAt, time.Duration(durationMinutes)*time.Minute, excludeScheduleID)
	if err != nil {
		writeInternal(w, r, "check guide conflict", err)
		return false
	}
	if conflict {
		writeConflict(w, "guide is already assigned to an overlapping schedule")
		return false
	}
	return true
}

func (srv *Server) handleBulkSchedules(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	var body struct {
		TourID   uuid.UUID  `json:"tourId"`
		GuideID  *uuid.UUID `json:"guideId"`
		From     string     `json:"from"` // YYYY-MM-DD
		To       string     `json:"to"`   // YYYY-MM-DD
		Weekdays []int      `json:"weekdays"`
		Slots    []string   `json:"slots"` // HH:MM
		Capacity int        `json:"capacity"`
		Timezone string     `json:"timezone"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if body.Capacity < 1 || body.Capacity > 10000 {
		writeBadRequest(w, "capacity must be between 1 and 10000")
		return
	}
	tour, err := srv.store.GetTour(r.Context(), rc.Org.OrgID, body.TourID)
	if err != nil {
		writeInternal(w, r, "get tour for bulk schedules", err)
		return
	}
	if tour == nil {
		writeNotFound(w, "tour not found")
		return
	}

	rec, err := parseRecurrence(body.From, body.To, body.Weekdays, body.Slots, body.Timezone)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	instants, err := schedule.Expand(rec, srv.cfg.ScheduleBulkCap)
	if errors.Is(err, schedule.ErrTooManyInstances) {
		writeError(w, http.StatusUnprocessableEntity, "TOO_MANY_INSTANCES", err.Error())
		return
	}
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	created, err := srv.store.CreateSchedulesBulk(r.Context(), rc.Org.OrgID, body.TourID, body.GuideID, instants, body.Capacity)
	if err != nil {
		writeInternal(w, r, "bulk create schedules", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{
		"requested": len(instants),
		"created":   created,
		"skipped":   len(instants) - created,
	})
}

func (srv *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	from, to, err := parseRangeQuery(r, 93*24*time.Hour)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	loc := time.UTC
	if tz := r.URL.Query().Get("timezone"); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			writeBadRequest(w, "unknown timezone")
			return
		}
	}

	schedules, err := srv.store.ListSchedulesInRange(r.Context(), rc.Org.OrgID, from, to)
	if err != nil {
		writeInternal(w, r, "list schedules for calendar", err)
		return
	}
	entries := make([]schedule.Entry, 0, len(schedules))
	for _, sc := range schedules {
		entries = append(entries, schedule.Entry{
			StartsAt: sc.StartsAt, Capacity: sc.Capacity, Booked: sc.BookedSeats,
		})
	}
	writeJSON(w, http.StatusOK, schedule.Aggregate(entries, loc))
}

// parseRecurrence converts the wire representation of a bulk request into a
// schedule.Recurrence.
func parseRecurrence(fromStr, toStr string, weekdays []int, slots []string, tz string) (schedule.Recurrence, error) {
	var rec schedule.Recurrence
	loc := time.UTC
	if tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return rec, errors.New("unknown timezone")
		}
	}
	from, err := time.ParseInLocation(time.DateOnly, fromStr, loc)
	if err != nil {
		return rec, errors.New("from must be YYYY-MM-DD")
	}
	to, err := time.ParseInLocation(time.DateOnly, toStr, loc)
	if err != nil {
		return rec, errors.New("to must be YYYY-MM-DD")
	}
	for _, d := range weekdays {
		if d < 0 || d > 6 {
			return rec, errors.New("weekdays must be 0 (Sunday) through 6 (Saturday)")
		}
		rec.Weekdays = append(rec.Weekdays, time.Weekday(d))
	}
	for _, s := range slots {
		t, err := time.Parse("15:04", s)
		if err != nil {
			return rec, errors.New("slots must be HH:MM")
		}
		rec.Slots = append(rec.Slots, schedule.Slot{Hour: t.Hour(), Minute: t.Minute()})
	}
	rec.From, rec.To, rec.Location = from, to, loc
	return rec, nil
}

// parseRangeQuery reads from/to RFC 3339 query parameters, bounded to maxSpan.
func parseRangeQuery(r *http.Request, maxSpan time.Duration) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("from must be RFC 3339")
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("to must be RFC 3339")
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	if to.Sub(from) > maxSpan {
		return time.Time{}, time.Time{}, errors.New("range too wide")
	}
	return from, to, nil
}
