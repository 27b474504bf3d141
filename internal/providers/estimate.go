package providers

// Latitude-band and regional fallback tables. These back every provider
// chain: when the live endpoints are unreachable the pipeline still produces
// a complete feature set, it just carries lower confidence.

// EstimateSolarIrradiance returns a climatological irradiance estimate
// (kWh/m²/day) keyed by absolute latitude band.
func EstimateSolarIrradiance(lat float64) float64 {
	a := abs(lat)
	switch {
	case a <= 15:
		return 6.5 // tropical
	case a <= 30:
		return 5.5 // subtropical belt
	case a <= 45:
		return 4.0 // temperate
	case a <= 60:
		return 2.5 // subarctic
	default:
		return 1.5 // arctic
	}
}

// EstimateWindSpeed returns a latitude-band mean wind speed (m/s).
func EstimateWindSpeed(lat float64) float64 {
	a := abs(lat)
	switch {
	case a <= 15:
		return 3.2
	case a <= 25:
		return 4.0
	case a <= 35:
		return 4.8
	case a <= 50:
		return 5.5
	case a <= 65:
		return 7.0
	default:
		return 8.5
	}
}

// EstimateTemperature returns a latitude-band mean temperature (°C).
func EstimateTemperature(lat float64) float64 {
	a := abs(lat)
	switch {
	case a <= 10:
		return 28.0
	case a <= 20:
		return 26.0
	case a <= 30:
		return 24.0
	case a <= 40:
		return 18.0
	case a <= 50:
		return 10.0
	case a <= 60:
		return 4.0
	default:
		return -5.0
	}
}

// EstimateHumidity returns a latitude-band mean relative humidity (%).
func EstimateHumidity(lat float64) float64 {
	a := abs(lat)
	switch {
	case a <= 10:
		return 80.0
	case a <= 20:
		return 65.0
	case a <= 30:
		return 48.0
	case a <= 40:
		return 55.0
	case a <= 55:
		return 70.0
	default:
		return 75.0
	}
}

// EstimateCloudCover returns a latitude-band mean cloud cover (%).
func EstimateCloudCover(lat float64) float64 {
	a := abs(lat)
	switch {
	case a <= 10:
		return 55.0 // tropical convergence zone
	case a <= 20:
		return 35.0
	case a <= 30:
		return 30.0 // semi-arid belt
	case a <= 40:
		return 45.0
	case a <= 55:
		return 65.0
	default:
		return 75.0
	}
}

// EstimateElevation returns a coarse regional elevation (m) for the few
// mountain belts that matter to placement, defaulting to lowland.
func EstimateElevation(lat, lng float64) float64 {
	switch {
	case lat >= 28 && lat <= 40 && lng >= 75 && lng <= 105:
		return 3500.0 // Himalayas
	case lat >= 8 && lat <= 37 && lng >= 68 && lng <= 97:
		return 400.0 // Indian subcontinent
	case lat >= -55 && lat <= 10 && lng >= -80 && lng <= -60:
		return 1500.0 // Andes
	case lat >= 44 && lat <= 48 && lng >= 6 && lng <= 16:
		return 1200.0 // Alps
	case lat >= 30 && lat <= 60 && lng >= -125 && lng <= -90:
		return 700.0 // North American interior
	default:
		return 150.0
	}
}

// EstimateGridDistance returns a regional grid proximity heuristic (km)
// used when the caller does not supply a distance.
func EstimateGridDistance(lat, lng float64) float64 {
	if lat >= 8 && lat <= 37 && lng >= 68 && lng <= 97 {
		// Indian subcontinent
		switch {
		case lat >= 20 && lat <= 30:
			return 8.0 // Indo-Gangetic plain, dense grid
		case lat > 30:
			return 20.0 // Himalayan foothills
		default:
			return 10.0
		}
	}
	if lat >= 35 && lat <= 72 && lng >= -10 && lng <= 40 {
		return 5.0 // Europe
	}
	if lat >= 25 && lat <= 60 && lng >= -130 && lng <= -60 {
		return 12.0 // North America
	}
	if lat >= -35 && lat <= 37 && lng >= -18 && lng <= 52 {
		return 25.0 // Africa
	}
	return 15.0
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
