// Package poller implements the background scrape loop.
//
// The poller:
//   - Scrapes once, synchronously, before entering Running (a failure
//     here is surfaced to the caller and the poller stays Idle)
//   - Then scrapes every interval, measured from the end of the previous
//     scrape (drift over catch-up bursts)
//   - Hands each successful scrape to an ObservationHandler
//   - Swallows steady-state failures at its boundary: a bad tick is
//     logged and the loop continues
package poller
