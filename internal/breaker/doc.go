// Package breaker implements the circuit breaker guarding upstream
// fuel-price fetches.
//
// A breaker has three states:
//
//   - CLOSED: normal operation, fetches pass through
//   - OPEN: upstream failing, fetches rejected immediately
//   - HALF-OPEN: reset timeout elapsed, one probe fetch allowed
//
// Usage:
//
//	reg := breaker.NewRegistry(3, 30*time.Second)
//	cb := reg.Get("tx-hou")
//	if !cb.Allow() {
//	    // serve cached data instead
//	}
//	// fetch...
//	if err != nil {
//	    cb.RecordFailure()
//	} else {
//	    cb.RecordSuccess()
//	}
package breaker
