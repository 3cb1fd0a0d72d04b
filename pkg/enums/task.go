package enums

import "fmt"

// TaskType categorizes a CRM task.
type TaskType string

const (
	TaskTypeCall     TaskType = "call"
	TaskTypeEmail    TaskType = "email"
	TaskTypeMeeting  TaskType = "meeting"
	TaskTypeDeadline TaskType = "deadline"
	TaskTypeTodo     TaskType = "todo"
)

var validTaskTypes = []TaskType{
	TaskTypeCall,
	TaskTypeEmail,
	TaskTypeMeeting,
	TaskTypeDeadline,
	TaskTypeTodo,
}

func (t TaskType) String() string { return string(t) }

func (t TaskType) IsValid() bool {
	for _, candidate := range validTaskTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParseTaskType(value string) (TaskType, error) {
	for _, candidate := range validTaskTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid task type %q", value)
}

// TaskPriority orders tasks by urgency.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

var validTaskPriorities = []TaskPriority{
	TaskPriorityLow,
	TaskPriorityMedium,
	TaskPriorityHigh,
}

func (p TaskPriority) String() string { return string(p) }

func (p TaskPriority) IsValid() bool {
	for _, candidate := range validTaskPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParseTaskPriority(value string) (TaskPriority, error) {
	for _, candidate := range validTaskPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid task priority %q", value)
}
