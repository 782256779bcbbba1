package domain

const (
	SNRGood  = float64(-7)
	SNRFair  = float64(-15)
	RSSIGood = float64(-115)
	RSSIFair = float64(-126)
)

type SignalQuality int

const (
	SignalUnknown SignalQuality = iota
	SignalBad
	SignalFair
	SignalGood
)

func (q SignalQuality) String() string {
	switch q {
	case SignalBad:
		return "bad"
	case SignalFair:
		return "fair"
	case SignalGood:
		return "good"
	default:
		return "unknown"
	}
}

// DetermineSignalQuality Thresholds match Meshtastic Android signal indicator:
// https://github.com/meshtastic/Meshtastic-Android/blob/fe5d7d6b92ae185fad5b4df9587a18c756512684/core/ui/src/main/kotlin/org/meshtastic/core/ui/component/LoraSignalIndicator.kt#L62-L66
func DetermineSignalQuality(snr, rssi *float64) SignalQuality {
	if rssi == nil || snr == nil || *rssi == 0 {
		return SignalUnknown
	}
	if *snr >= SNRGood && *rssi >= RSSIGood {
		return SignalGood
	}
	if *snr >= SNRFair && *rssi >= RSSIFair {
		return SignalFair
	}
	return SignalBad
}
