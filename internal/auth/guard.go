package auth

import "go-blog-app/internal/data"

// Decision is the outcome of a guard, with a reason suitable for logs.
type Decision struct {
	Allowed bool
	Reason  string
}

// CanModifyPost allows the post's author and staff users to edit or
// delete it.
func CanModifyPost(user *data.User, post *data.Post) Decision {
	switch {
	case user == nil:
		return Decision{Allowed: false, Reason: "not signed in"}
	case user.IsStaff:
		return Decision{Allowed: true, Reason: "staff"}
	case post != nil && post.AuthorID == user.ID:
		return Decision{Allowed: true, Reason: "author"}
	default:
		return Decision{Allowed: false, Reason: "not the author"}
	}
}

// IsStaff reports whether user may manage categories.
func IsStaff(user *data.User) Decision {
	if user == nil {
		return Decision{Allowed: false, Reason: "not signed in"}
	}
	if !user.IsStaff {
		return Decision{Allowed: false, Reason: "staff only"}
	}
	return Decision{Allowed: true, Reason: "staff"}
}
