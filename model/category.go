package model

import "strings"

// Category is the coarse filter group for catalog entries.
type Category string

const (
	CategoryAll           Category = "ALL"
	CategoryDebris        Category = "DEBRIS"
	CategoryGPS           Category = "GPS"
	CategoryStarlink      Category = "STARLINK"
	CategoryWeather       Category = "WEATHER"
	CategoryCommunication Category = "COMMUNICATION"
)

var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryGPS, []string{"GPS", "GALILEO", "GLONASS", "BEIDOU"}},
	{CategoryStarlink, []string{"STARLINK", "ONEWEB", "IRIDIUM"}},
	{CategoryWeather, []string{"GOES", "NOAA", "METOP"}},
}

var missionKeywords = []struct {
	mission  string
	keywords []string
}{
	{"Navigation/GPS", []string{"GPS", "GALILEO", "GLONASS", "BEIDOU"}},
	{"Communication Network", []string{"STARLINK", "ONEWEB", "IRIDIUM"}},
	{"Weather/Climate", []string{"GOES", "NOAA", "METOP"}},
	{"Earth Observation", []string{"SENTINEL", "LANDSAT", "TERRA", "AQUA"}},
	{"Space Station", []string{"ISS", "TIANGONG"}},
	{"Space Telescope", []string{"HUBBLE", "WEBB", "CHANDRA"}},
}

// ParseCategory maps s onto a Category; unknown or empty values mean ALL.
func ParseCategory(s string) Category {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryDebris, CategoryGPS, CategoryStarlink, CategoryWeather, CategoryCommunication:
		return c
	default:
		return CategoryAll
	}
}

// CategoryOf classifies an object by kind and name.
func CategoryOf(o TrackedObject) Category {
	if o.IsDebris() {
		return CategoryDebris
	}
	name := strings.ToUpper(o.Name)
	for _, entry := range categoryKeywords {
		if containsAny(name, entry.keywords) {
			return entry.category
		}
	}
	return CategoryCommunication
}

// Matches reports whether o belongs to the filter category c.
// COMMUNICATION includes the STARLINK constellations.
func (c Category) Matches(o TrackedObject) bool {
	got := CategoryOf(o)
	switch c {
	case CategoryAll, "":
		return true
	case CategoryCommunication:
		return got == CategoryCommunication || got == CategoryStarlink
	default:
		return got == c
	}
}

// MissionOf returns a human-readable mission label for o.
func MissionOf(o TrackedObject) string {
	name := strings.ToUpper(o.Name)
	for _, entry := range missionKeywords {
		if containsAny(name, entry.keywords) {
			return entry.mission
		}
	}
	if o.IsDebris() {
		return "Space Debris"
	}
	return "Scientific Satellite"
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
