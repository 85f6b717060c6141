/*
Package resilience provides a circuit breaker for outbound probe calls.

# Overview

The localhost origin prober hits developer servers that come and go; the
breaker stops hammering an origin that keeps refusing connections and lets
probes resume once it recovers.

# Usage

	breaker := resilience.New("localhost-probe", resilience.Settings{
		MaxRequests: 2,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	err := breaker.Do(func() error {
		return probeOrigin(origin)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                      [failure]
	                                           v
	                                         Open
*/
package resilience
