package enums

import "fmt"

// MessageRole distinguishes who authored an assistant conversation turn.
type MessageRole string

const (
	MessageRoleUser  MessageRole = "user"
	MessageRoleModel MessageRole = "model"
)

var validMessageRoles = []MessageRole{
	MessageRoleUser,
	MessageRoleModel,
}

func (r MessageRole) String() string { return string(r) }

func (r MessageRole) IsValid() bool {
	for _, candidate := range validMessageRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseMessageRole(value string) (MessageRole, error) {
	for _, candidate := range validMessageRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid message role %q", value)
}
