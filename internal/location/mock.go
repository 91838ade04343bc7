package location

import "github.com/oshokin/emergency-alert/internal/domain/emergency"

// Service kinds known to the nearby search.
const (
	KindHospital    = "hospital"
	KindPolice      = "police"
	KindFireStation = "fire_station"
)

// mockPhone is the number listed for built-in services.
const mockPhone = "911"

// MockServices returns the deterministic built-in list of services of kind around a point.
// Unknown kinds fall back to hospitals.
func MockServices(lat, lng float64, kind string) []emergency.NearbyService {
	var services []emergency.NearbyService

	switch kind {
	case KindPolice:
		services = []emergency.NearbyService{
			{Name: "City Police Station", Address: "Police Plaza", Latitude: lat + 0.005, Longitude: lng + 0.005},
		}
	case KindFireStation:
		services = []emergency.NearbyService{
			{Name: "Fire Department Station 1", Address: "Fire Station Road", Latitude: lat - 0.005, Longitude: lng + 0.005},
		}
	default:
		kind = KindHospital
		services = []emergency.NearbyService{
			{Name: "City General Hospital", Address: "Main Street", Latitude: lat + 0.01, Longitude: lng + 0.01},
			{Name: "Emergency Medical Center", Address: "Oak Avenue", Latitude: lat - 0.01, Longitude: lng - 0.01},
		}
	}

	for i := range services {
		services[i].Kind = kind
		services[i].Phone = mockPhone
	}

	return services
}
