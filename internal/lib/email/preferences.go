package email

// Category groups emails for user preferences and queue priority.
type Category string

const (
	CategoryTransactional      Category = "transactional"
	CategoryMarketing          Category = "marketing"
	CategoryCourseUpdates      Category = "course_updates"
	CategoryLiveClassReminders Category = "live_class_reminders"
	CategorySupportUpdates     Category = "support_updates"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryTransactional, CategoryMarketing, CategoryCourseUpdates,
		CategoryLiveClassReminders, CategorySupportUpdates:
		return true
	}
	return false
}

// Queue names the asynq queue used for the category.
func (c Category) Queue() string {
	switch c {
	case CategoryTransactional:
		return "critical"
	case CategoryMarketing:
		return "low"
	default:
		return "default"
	}
}

// Preferences are a user's opt-ins. Transactional mail cannot be turned off.
type Preferences struct {
	Marketing          bool `json:"marketing" db:"marketing"`
	CourseUpdates      bool `json:"course_updates" db:"course_updates"`
	LiveClassReminders bool `json:"live_class_reminders" db:"live_class_reminders"`
	SupportUpdates     bool `json:"support_updates" db:"support_updates"`
}

// DefaultPreferences apply to users who never saved any: marketing is opt-in.
func DefaultPreferences() Preferences {
	return Preferences{
		Marketing:          false,
		CourseUpdates:      true,
		LiveClassReminders: true,
		SupportUpdates:     true,
	}
}

// Allows reports whether mail of category c may be sent.
func (p Preferences) Allows(c Category) bool {
	switch c {
	case CategoryTransactional:
		return true
	case CategoryMarketing:
		return p.Marketing
	case CategoryCourseUpdates:
		return p.CourseUpdates
	case CategoryLiveClassReminders:
		return p.LiveClassReminders
	case CategorySupportUpdates:
		return p.SupportUpdates
	default:
		return false
	}
}
