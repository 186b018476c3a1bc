package Mappers

import (
	"strings"

	"Workdesk/Models"
	"Workdesk/Store"
)

func ToUser(doc Store.Document) Models.AppUser {
	d := doc.Data
	role := Models.Role(strings.ToLower(asString(d["role"])))
	if !role.Valid() {
		role = Models.RoleGeneral
	}
	uid := asString(d["uid"])
	if uid == "" {
		uid = doc.ID
	}
	return Models.AppUser{
		UID:          uid,
		Email:        strings.ToLower(asString(d["email"])),
		DisplayName:  asString(d["displayName"]),
		JobTitle:     asString(d["jobTitle"]),
		Role:         role,
		PasswordHash: asString(d["passwordHash"]),
		PushTokens:   asStrings(d["pushTokens"]),
	}
}

func ToUsers(docs []Store.Document) []Models.AppUser {
	out := make([]Models.AppUser, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ToUser(doc))
	}
	return out
}

// UserFields holds the profile fields; credentials and push tokens are written separately.
func UserFields(u Models.AppUser) map[string]any {
	return map[string]any{
		"email":       u.Email,
		"displayName": u.DisplayName,
		"jobTitle":    u.JobTitle,
		"role":        string(u.Role),
	}
}
