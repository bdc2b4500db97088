// Package mqtt wraps the Eclipse Paho client for Flower Core's broker
// surface: retained unit state, command outcome events, show status
// and an inbound per-unit command topic. Connection management,
// reconnection with subscription restoration, and Last Will and
// Testament on the system status topic live here; what to publish is
// decided by the publish package.
package mqtt
