package violations

import "github.com/agrohub/agrohub/internal/permissions"

// CanCreate reports whether the caller may file violations.
func CanCreate(caps permissions.Capabilities) bool {
	return caps.Create
}

// CanEdit reports whether the caller may update v.
func CanEdit(caps permissions.Capabilities, actorID int64, v Violation) bool {
	return caps.ApplySanctions || caps.EditAll || (caps.EditOwn && v.UserID == actorID)
}

// CanDelete reports whether the caller may remove violations.
func CanDelete(caps permissions.Capabilities) bool {
	return caps.Delete
}

// CanAttachPhoto reports whether the caller may add evidence to v. Authors
// holding can_create may attach to their own reports.
func CanAttachPhoto(caps permissions.Capabilities, actorID int64, v Violation) bool {
	return CanEdit(caps, actorID, v) || (caps.Create && v.UserID == actorID)
}

// redact hides fields the caller may not see.
func redact(v Violation, caps permissions.Capabilities, actorID int64) Violation {
	if !caps.ViewPhotos {
		v.setPhotos(nil)
	}
	if !caps.ViewSanctions && !CanEdit(caps, actorID, v) {
		v.Responsibility = nil
		v.Fullname = nil
		v.FineAmount = nil
	}
	return v
}
