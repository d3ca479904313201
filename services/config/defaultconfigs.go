package config

// Embedded configuration, keyed by board name (the value placed in the
// context under CtxBoardKey). Omit a key rather than give it an empty
// string: the decoder cannot represent "".

const cfgSim = `{
  "telemetry": {
    "period_ms": 10000,
    "frequency_hz": 915000000,
    "tx_poll_budget": 5000
  },
  "mqtt": {
    "prefix": "lora"
  },
  "heartbeat": {
    "interval_ms": 30000
  }
}`

const cfgLitex = `{
  "telemetry": {
    "period_ms": 10000,
    "frequency_hz": 915000000,
    "tx_poll_budget": 5000
  }
}`

const cfgLinux = `{
  "telemetry": {
    "period_ms": 10000,
    "frequency_hz": 915000000,
    "tx_poll_budget": 5000
  },
  "mqtt": {
    "prefix": "lora"
  },
  "heartbeat": {
    "interval_ms": 30000
  }
}`

var embeddedConfigs = map[string][]byte{
	"sim":        []byte(cfgSim),
	"linux":      []byte(cfgLinux),
	"litex-rv32": []byte(cfgLitex),
}
