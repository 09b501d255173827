// Package testutil provides test fixtures for the x-oauth2 module: a
// controllable clock, a scripted token endpoint and an in-memory
// OpenTelemetry setup.
package testutil
