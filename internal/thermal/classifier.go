package thermal

const (
	millidegreeThreshold = 1000
	kelvinThreshold      = 223 // 223 K ~ -50 degrees C
	kelvinOffset         = 273
)

// Normalize converts a raw reading to degrees Celsius. The value
// carries no unit metadata, so two heuristics are applied in order,
// each at most once: values above 1000 are taken as millidegrees,
// values still above 223 as kelvin.
func Normalize(raw int) Temperature {
	if raw > millidegreeThreshold {
		raw /= millidegreeThreshold
	}
	if raw > kelvinThreshold {
		raw -= kelvinOffset
	}

	return Temperature(raw)
}

// Classify normalizes a raw reading and walks the band ladder from
// current: while the temperature is below the band's minimum the band
// is decremented, while above its maximum it is incremented, re-checking
// against each new band's thresholds. A single call only moves toward
// the side of the breach, so intermediate bands may be stepped through
// but the walk never oscillates.
func Classify(raw int, current Status, levels *Levels) (Status, Temperature) {
	temperature := Normalize(raw)
	status := current

	if temperature < levels[status].Min {
		for status > StatusNormal && temperature < levels[status].Min {
			status--
		}
	} else if temperature > levels[status].Max {
		for status < StatusFatal && temperature > levels[status].Max {
			status++
		}
	}

	return status, temperature
}
