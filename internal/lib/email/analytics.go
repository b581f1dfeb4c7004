package email

import "math"

// Analytics summarises delivery outcomes over a set of messages.
type Analytics struct {
	Total        int64            `json:"total"`
	Counts       map[Status]int64 `json:"counts"`
	DeliveryRate float64          `json:"delivery_rate"`
	OpenRate     float64          `json:"open_rate"`
	ClickRate    float64          `json:"click_rate"`
	BounceRate   float64          `json:"bounce_rate"`
}

// ComputeAnalytics derives rates from per-status counts.
//
//	delivery = delivered-or-later / sent-or-later
//	open     = opened-or-later / delivered-or-later
//	click    = clicked / opened-or-later
//	bounce   = bounced / sent-or-later
//
// A complaint implies the message was delivered. Rates are 0 when the
// denominator is 0.
func ComputeAnalytics(counts map[Status]int64) Analytics {
	c := func(s Status) int64 { return counts[s] }

	clicked := c(StatusClicked)
	openedOrLater := c(StatusOpened) + clicked
	deliveredOrLater := c(StatusDelivered) + openedOrLater + c(StatusComplained)
	sentOrLater := c(StatusSent) + deliveredOrLater + c(StatusBounced)

	var total int64
	normalized := make(map[Status]int64, len(counts))
	for _, s := range []Status{StatusQueued, StatusSuppressed, StatusSent, StatusDelivered, StatusOpened, StatusClicked, StatusBounced, StatusComplained, StatusFailed} {
		normalized[s] = c(s)
		total += c(s)
	}

	return Analytics{
		Total:        total,
		Counts:       normalized,
		DeliveryRate: ratio(deliveredOrLater, sentOrLater),
		OpenRate:     ratio(openedOrLater, deliveredOrLater),
		ClickRate:    ratio(clicked, openedOrLater),
		BounceRate:   ratio(c(StatusBounced), sentOrLater),
	}
}

func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*10000) / 10000
}
