// Package protocol implements the line-oriented acknowledgement
// protocol spoken over serial buses.
//
// Outbound frames look like "7/LEDRAMP:120,1500\n"; the unit answers
// "7/ACK" or "7/NACK", optionally with a ":text" payload and a stray
// carriage return. Replies carry the unit's address but no exchange
// token, so Client keeps an address-to-latest-exchange index and
// resolves each reply against the most recent send to that address.
// The command dispatcher serializes commands per unit, which is what
// makes that resolution unambiguous.
package protocol
