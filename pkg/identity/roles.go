package identity

import "strings"

// AllowList is the static set of email addresses granted admin regardless of
// stored role. Promotion off this list is self-healing: a listed email
// becomes admin on its first successful authentication after being added.
type AllowList struct {
	emails map[string]struct{}
}

// NewAllowList builds an allow-list; emails are matched case-insensitively
func NewAllowList(emails []string) *AllowList {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return &AllowList{emails: set}
}

// Contains reports whether the email is on the allow-list
func (l *AllowList) Contains(email string) bool {
	if l == nil || email == "" {
		return false
	}
	_, ok := l.emails[strings.ToLower(email)]
	return ok
}

// ResolveRole derives the effective role from a user record plus the
// allow-list. It is pure and re-run on every request, so out-of-band role
// changes take effect on the next request without a token refresh.
func ResolveRole(user *User, allowList *AllowList) Role {
	if user == nil {
		return RolePassenger
	}

	admin := user.Role == RoleAdmin || user.IsAdmin || allowList.Contains(user.Email)
	if admin {
		return RoleAdmin
	}

	if user.Role == RoleStaff || user.IsStaff {
		return RoleStaff
	}

	return RolePassenger
}
