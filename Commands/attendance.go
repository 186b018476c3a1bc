package Commands

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	"Workdesk/AbstractFunctions"
	"Workdesk/Mappers"
	"Workdesk/Models"
	"Workdesk/Store"
)

func (s *Service) getWorkLog(tx Store.Tx, id string) (Models.WorkLogEntry, error) {
	doc, err := tx.Get(Models.WorkLogPath(id))
	if err != nil {
		return Models.WorkLogEntry{}, storeError(err, "work log")
	}
	return Mappers.ToWorkLog(doc), nil
}

// ClockIn opens today's work log for the actor. The document id is derived from
// the user and the reference-zone date, so the store rejects a second clock-in.
func (s *Service) ClockIn(ctx context.Context, actor Models.AppUser, reason string) (Models.WorkLogEntry, error) {
	now := s.now()
	reason = strings.TrimSpace(reason)

	entry := Models.WorkLogEntry{
		ID:              Models.WorkLogID(actor.UID, AbstractFunctions.DateKey(now)),
		UserID:          actor.UID,
		UserDisplayName: actor.DisplayName,
		DateKey:         AbstractFunctions.DateKey(now),
		ClockInAt:       now,
		Status:          Models.WorkLogPending,
	}
	if AbstractFunctions.IsTardy(now) {
		if reason == "" {
			minutes := strconv.Itoa(AbstractFunctions.TardinessMinutes(now))
			return Models.WorkLogEntry{}, fail("tardiness_reason", ErrTardinessReasonRequired, minutes)
		}
		entry.TardinessReason = &reason
	}

	err := s.store.CreateWithID(ctx, Models.WorkLogPath(entry.ID), Mappers.WorkLogFields(entry))
	if errors.Is(err, Store.ErrAlreadyExists) {
		return Models.WorkLogEntry{}, fail("already_clocked_in", ErrAlreadyClockedIn)
	}
	if err != nil {
		return Models.WorkLogEntry{}, storeError(err, "work log")
	}
	return entry, nil
}

func (s *Service) decideWorkLog(ctx context.Context, actor Models.AppUser, id string, to Models.WorkLogStatus) (Models.WorkLogEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return Models.WorkLogEntry{}, err
	}
	var updated Models.WorkLogEntry
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx Store.Tx) error {
		entry, err := s.getWorkLog(tx, id)
		if err != nil {
			return err
		}
		if err := Models.ValidateWorkLogTransition(entry.Status, to); err != nil {
			return fail("worklog_transition", err, string(entry.Status))
		}
		now := s.now()
		by := actor.UID
		entry.Status = to
		entry.ApprovedBy = &by
		entry.ApprovedAt = &now
		updated = entry
		return tx.Update(Models.WorkLogPath(id), map[string]any{
			"status":     string(to),
			"approvedBy": by,
			"approvedAt": now,
		})
	})
	if err != nil {
		return Models.WorkLogEntry{}, storeError(err, "work log")
	}
	return updated, nil
}

func (s *Service) ApproveWorkLog(ctx context.Context, actor Models.AppUser, id string) (Models.WorkLogEntry, error) {
	return s.decideWorkLog(ctx, actor, id, Models.WorkLogApproved)
}

func (s *Service) RejectWorkLog(ctx context.Context, actor Models.AppUser, id string) (Models.WorkLogEntry, error) {
	return s.decideWorkLog(ctx, actor, id, Models.WorkLogRejected)
}

// ClockOut closes the actor's approved work log. An empty id means today's.
func (s *Service) ClockOut(ctx context.Context, actor Models.AppUser, id string) (Models.WorkLogEntry, error) {
	now := s.now()
	if id == "" {
		id = Models.WorkLogID(actor.UID, AbstractFunctions.DateKey(now))
	}
	var updated Models.WorkLogEntry
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx Store.Tx) error {
		entry, err := s.getWorkLog(tx, id)
		if err != nil {
			return err
		}
		switch {
		case entry.UserID != actor.UID:
			return fail("not_owner", ErrForbidden)
		case entry.Status != Models.WorkLogApproved:
			return fail("not_approved", ErrNotApproved)
		case entry.Closed():
			return fail("already_clocked_out", ErrAlreadyClockedOut)
		}
		entry.ClockOutAt = &now
		updated = entry
		return tx.Update(Models.WorkLogPath(id), map[string]any{"clockOutAt": now})
	})
	if err != nil {
		return Models.WorkLogEntry{}, storeError(err, "work log")
	}
	return updated, nil
}

// ResetWorkLog deletes a work log so its owner can clock in again that day.
func (s *Service) ResetWorkLog(ctx context.Context, actor Models.AppUser, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if _, err := s.store.Get(ctx, Models.WorkLogPath(id)); err != nil {
		return storeError(err, "work log")
	}
	if err := s.store.Delete(ctx, Models.WorkLogPath(id)); err != nil {
		return storeError(err, "work log")
	}
	log.Printf("%s reset work log %s", actor.UID, id)
	return nil
}

// ToggleLeaveDay flips the actor's leave marker for dateKey and reports
// whether the day is now marked.
func (s *Service) ToggleLeaveDay(ctx context.Context, actor Models.AppUser, dateKey string) (bool, error) {
	if _, err := AbstractFunctions.ParseDateKey(dateKey); err != nil {
		return false, fail("invalid_date", ErrInvalidInput, dateKey)
	}
	path := Models.LeaveDayPath(actor.UID, dateKey)

	var onLeave bool
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx Store.Tx) error {
		_, err := tx.Get(path)
		switch {
		case err == nil:
			onLeave = false
			return tx.Delete(path)
		case errors.Is(err, Store.ErrNotFound):
			onLeave = true
			return tx.Create(path, Mappers.LeaveDayFields(Models.LeaveDay{
				UserID:    actor.UID,
				DateKey:   dateKey,
				CreatedAt: s.now(),
			}))
		}
		return err
	})
	if err != nil {
		return false, storeError(err, "leave day")
	}
	return onLeave, nil
}
