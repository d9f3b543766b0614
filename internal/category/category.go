// Package category enumerates the data categories that retention, export and
// deletion operate on. Categories partition stored information so each
// lifecycle operation can run independently per partition.
package category

// Category identifies one partition of workspace data.
type Category string

const (
	Posts         Category = "posts"
	Media         Category = "media"
	Conversations Category = "conversations"
	Messages      Category = "messages"
	UserProfile   Category = "user_profile"
	AuditLog      Category = "audit_log"
)

// All is the single source of truth for supported categories.
var All = []Category{Posts, Media, Conversations, Messages, UserProfile, AuditLog}

var valid = map[Category]bool{
	Posts:         true,
	Media:         true,
	Conversations: true,
	Messages:      true,
	UserProfile:   true,
	AuditLog:      true,
}

// IsValid checks if the category is one of the supported enum values.
func (c Category) IsValid() bool {
	return valid[c]
}

func (c Category) String() string {
	return string(c)
}
