package types

// ------------------------
// Temperature & humidity
// ------------------------

// Reading is one sensor sample in fixed point.
type Reading struct {
	// Hundredths of °C (e.g. 2345 => 23.45°C).
	CentiC int16 `json:"centi_c"`
	// Hundredths of %RH (e.g. 5510 => 55.10%).
	CentiRH int16 `json:"centi_rh"`
}

// Celsius returns the temperature in °C.
func (r Reading) Celsius() float32 { return float32(r.CentiC) / 100 }

// RelHumidity returns relative humidity in percent.
func (r Reading) RelHumidity() float32 { return float32(r.CentiRH) / 100 }

// TxResult reports the outcome of one radio transmission.
type TxResult struct {
	Seq   uint32 `json:"seq"`
	OK    bool   `json:"ok"`
	Bytes int    `json:"bytes"`
	Err   string `json:"err,omitempty"`
	TsMs  int64  `json:"ts_ms"`
}
