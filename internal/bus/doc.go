// Package bus owns the field links: serial lines speaking the
// acknowledgement protocol and Modbus TCP gateways speaking registers.
//
//	┌───────────┐   Get/Connect    ┌───────────────────────────┐
//	│ Directory │ ───────────────► │          Client            │
//	│  (gated)  │                  │  SerialClient │ ModbusClient
//	└───────────┘                  └──────┬────────────┬───────┘
//	                                      │            │
//	                              protocol.Client    Mapper
//	                                      │            │
//	                              SerialTransport  ModbusTransport
//
// A Client settles every exchange with an outcome rather than an
// error: Acked, Nacked or Timeout. Serial buses wait on real
// per-frame acknowledgements; Modbus buses treat a confirmed register
// sequence as acked because the gateway has no application-level
// reply channel. The Directory serializes connect and disconnect
// through a single gate and always tears an old client fully down
// before registering its replacement.
package bus
