// Package publish mirrors engine events onto the MQTT broker (retained
// unit state, outcome events, show status) and turns inbound broker
// messages into dispatched unit commands. The broker is optional:
// nothing in the engine depends on a publish succeeding.
package publish
