package email

import "time"

// PreviewData is sample data for rendering every template without a database.
var PreviewData = map[Template]map[string]any{
	TemplateWelcome: {
		"SchoolName":  "Acme Academy",
		"FirstName":   "Ada",
		"CourseTitle": "Intro to Go",
		"CourseURL":   "https://school.example.com/courses/intro-to-go",
	},
	TemplatePaymentReceipt: {
		"SchoolName":       "Acme Academy",
		"FirstName":        "Ada",
		"CourseTitle":      "Intro to Go",
		"PaymentReference": "pay_4f1c2a",
		"ListPrice":        "49.00",
		"Discount":         "9.80",
		"AmountPaid":       "39.20",
		"Currency":         "USD",
	},
	TemplatePaymentFailed: {
		"FirstName":   "Ada",
		"CourseTitle": "Intro to Go",
		"Reason":      "card declined",
	},
	TemplateLiveClassReminder: {
		"FirstName":   "Ada",
		"ClassTitle":  "Week 1 Q&A",
		"CourseTitle": "Intro to Go",
		"StartsAt":    time.Date(2026, 1, 12, 17, 0, 0, 0, time.UTC),
		"Provider":    "zoom",
		"JoinURL":     "https://zoom.us/j/123456789",
		"Passcode":    "gopher",
	},
	TemplateLiveClassCancel: {
		"FirstName":   "Ada",
		"ClassTitle":  "Week 1 Q&A",
		"CourseTitle": "Intro to Go",
		"StartsAt":    time.Date(2026, 1, 12, 17, 0, 0, 0, time.UTC),
	},
	TemplateTicketUpdate: {
		"FirstName": "Ada",
		"Subject":   "Cannot access lesson 3",
		"Headline":  "A staff member replied",
		"Reply":     "Thanks for reaching out, the lesson is unlocked now.",
		"Status":    "pending",
		"TicketURL": "https://school.example.com/support/tickets/1",
	},
	TemplateSLABreach: {
		"TicketID":  "7d1a2c3b-4e5f-4c1b-9f3e-0b6f8d1e3a52",
		"Subject":   "Cannot access lesson 3",
		"Priority":  "urgent",
		"Clocks":    "first_response",
		"CreatedAt": time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC),
	},
	TemplateAnnouncement: {
		"FirstName": "Ada",
		"Headline":  "New course: Advanced Concurrency",
		"Body":      "Enrollment opens next Monday.",
		"CTAURL":    "https://school.example.com/courses/advanced-concurrency",
	},
}
