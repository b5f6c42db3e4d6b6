// Package connection pairs the instrument-facing data endpoint with an
// optional command endpoint and tracks their readiness.
//
// Each channel moves UNCONFIGURED -> CONFIGURED -> INITIALIZED -> CONNECTED
// and falls back to CONFIGURED when its host or port changes while live.
// There is no error state; the owner retries by calling Initialize again.
package connection
