// Package resilience wraps embedding and LLM providers with rate limiting,
// a circuit breaker and retry of transient failures.
//
// Call order for every provider request:
//
//	breaker.Execute -> retry -> limiter.Wait -> op
//
// Only errors for which domain.IsTransient reports true are retried, and a
// stream is never retried once a fragment has been delivered.
package resilience
