// Package lib holds the building blocks that do not belong to a single layer:
// background jobs, email delivery, metrics, and the pure domain algorithms
// (SLA arithmetic, pricing, coupon rules, payment webhook verification).
package lib
