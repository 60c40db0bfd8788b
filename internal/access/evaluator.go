package access

import (
	"time"

	"github.com/campus-cloud/storage-api/internal/models"
)

// Reason identifies why an access decision was denied. Boundary layers map
// reasons to user-facing errors without leaking entity existence.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNotOwner         Reason = "not_owner"
	ReasonNoShare          Reason = "no_share"
	ReasonShareExpired     Reason = "share_expired"
	ReasonShareRevoked     Reason = "share_revoked"
	ReasonRoleMismatch     Reason = "role_mismatch"
	ReasonNotInstructor    Reason = "not_instructor_of_record"
	ReasonInactiveResource Reason = "inactive_resource"
)

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Evaluator holds the pure access-control rules. It has no dependencies and
// no side effects; callers fetch the entity snapshots it judges.
type Evaluator struct{}

// NewEvaluator returns the access-control evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// ShareLive reports whether a share currently grants access: stored status
// active and expiry, if set, still in the future. Expiry is evaluated at
// read time regardless of what the stored status says.
func ShareLive(share *models.Share, now time.Time) bool {
	if share == nil || share.Status != models.ShareStatusActive {
		return false
	}
	if share.ExpiresAt != nil && !share.ExpiresAt.After(now) {
		return false
	}
	return true
}

// CanReadFile decides download access: the owner always may; anyone else
// needs a live share on the file.
func (e *Evaluator) CanReadFile(p models.Principal, file *models.File, share *models.Share, now time.Time) Decision {
	if file.OwnerID == p.ID {
		return allow()
	}
	if share == nil {
		return deny(ReasonNoShare)
	}
	if share.FileID != file.ID || share.SharedWithUserID != p.ID {
		return deny(ReasonNoShare)
	}
	if share.Status == models.ShareStatusRevoked {
		return deny(ReasonShareRevoked)
	}
	if !ShareLive(share, now) {
		return deny(ReasonShareExpired)
	}
	return allow()
}

// CanCreateShares decides whether the principal may grant new shares on the
// file. Only the owner may, and only while the file is active.
func (e *Evaluator) CanCreateShares(p models.Principal, file *models.File) Decision {
	if file.OwnerID != p.ID {
		return deny(ReasonNotOwner)
	}
	if file.Status != models.FileStatusActive {
		return deny(ReasonInactiveResource)
	}
	return allow()
}

// CanManageShares decides listing and revocation of existing shares. Owner
// only; file status is deliberately not re-checked so shares on failed
// files can still be cleaned up.
func (e *Evaluator) CanManageShares(p models.Principal, file *models.File) Decision {
	if file.OwnerID != p.ID {
		return deny(ReasonNotOwner)
	}
	return allow()
}

// CanGrade decides grading and submission-listing access: staff role plus
// instructor of record on the assignment.
func (e *Evaluator) CanGrade(p models.Principal, assignment *models.Assignment) Decision {
	if !p.Role.IsStaff() {
		return deny(ReasonRoleMismatch)
	}
	if assignment.InstructorID != p.ID {
		return deny(ReasonNotInstructor)
	}
	return allow()
}

// CanSubmit decides submission access: any authenticated principal who owns
// the referenced file, provided the file is active. No role check.
func (e *Evaluator) CanSubmit(p models.Principal, file *models.File) Decision {
	if file.OwnerID != p.ID {
		return deny(ReasonNotOwner)
	}
	if file.Status != models.FileStatusActive {
		return deny(ReasonInactiveResource)
	}
	return allow()
}
