// Package moderation implements the review state machine gating exam generation.
// A record always names the template version it applies to, so an approval
// cannot outlive the version it was granted for.
package moderation

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/model"
)

// reviewTransitions are the moves a moderator may request directly.
// Approved -> Pending happens only through Edit.
var reviewTransitions = map[model.ModerationStatus][]model.ModerationStatus{
	model.ModerationPending:  {model.ModerationApproved, model.ModerationRejected},
	model.ModerationRejected: {model.ModerationPending},
}

// Allowed reports whether a moderator may move a record from one status to another.
func Allowed(from, to model.ModerationStatus) bool {
	for _, s := range reviewTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// New returns the initial pending record of a template version.
func New(examID primitive.ObjectID, version int, now time.Time) model.Moderation {
	return model.Moderation{
		ExamID:    examID,
		Version:   version,
		Status:    model.ModerationPending,
		UpdatedAt: now,
	}
}

// Request is a moderator's transition request. Version must name the template
// version under review.
type Request struct {
	Target      model.ModerationStatus
	Version     int
	ModeratorID string
	Feedback    string
}

// Transition applies req to cur and returns the new record.
func Transition(cur model.Moderation, req Request, now time.Time) (model.Moderation, error) {
	if !req.Target.Valid() {
		return cur, apperr.New(apperr.CodeTransitionRejected, "unknown status %q", req.Target)
	}
	if req.Version != cur.Version {
		return cur, apperr.New(apperr.CodeTransitionRejected,
			"record is at version %d, request names version %d", cur.Version, req.Version)
	}
	if !Allowed(cur.Status, req.Target) {
		return cur, apperr.New(apperr.CodeTransitionRejected, "%s -> %s not allowed", cur.Status, req.Target)
	}
	next := cur
	next.Status = req.Target
	next.ModeratorID = req.ModeratorID
	next.Feedback = req.Feedback
	next.UpdatedAt = now
	return next, nil
}

// Edit rebinds cur to a newly stored template version. Any approval of the
// old version is dropped; a rejected record stays rejected until resubmitted.
func Edit(cur model.Moderation, version int, now time.Time) (model.Moderation, error) {
	if version <= cur.Version {
		return cur, apperr.New(apperr.CodeTransitionRejected,
			"edit must raise version above %d, got %d", cur.Version, version)
	}
	next := cur
	next.Version = version
	next.UpdatedAt = now
	if cur.Status == model.ModerationApproved {
		next.Status = model.ModerationPending
		next.ModeratorID = ""
	}
	return next, nil
}

// RequireApproved fails with TemplateNotApproved unless m approves exactly version.
func RequireApproved(m model.Moderation, version int) error {
	if m.ApprovedFor(version) {
		return nil
	}
	if m.Status == model.ModerationApproved {
		return apperr.New(apperr.CodeTemplateNotApproved,
			"approval covers version %d, template is at version %d", m.Version, version)
	}
	return apperr.New(apperr.CodeTemplateNotApproved, "template version %d is %s", version, m.Status)
}
