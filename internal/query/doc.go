// Package query computes aggregates over the observation log.
//
// Supported metrics are Lowest and Average over a fixed set of trailing
// windows (7, 30, 90, 180, 365, 730 days). A window is exact duration
// subtraction from "now" (N * 24h), not calendar-day truncation, so
// boundary results do not depend on the time of day the query runs.
package query
