package core

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// Geodetic is a sub-satellite point. Latitude and longitude are degrees,
// longitude in (-180, 180].
type Geodetic struct {
	LatitudeDeg  float64 `json:"latitude"`
	LongitudeDeg float64 `json:"longitude"`
	// AltitudeKm is measured above the WGS-72 ellipsoid.
	AltitudeKm float64 `json:"ellipsoidAltitude"`
}

// GMST returns Greenwich mean sidereal time (radians) at t.
func GMST(t time.Time) float64 {
	return satellite.ThetaG_JD(julianDay(t))
}

// ToECEF rotates an inertial position into the Earth-fixed frame at t.
func ToECEF(p Vec3, t time.Time) Vec3 {
	v := satellite.ECIToECEF(toSatVector(p), GMST(t))
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// ToGeodetic converts an inertial position into latitude, longitude and
// ellipsoidal altitude at t.
func ToGeodetic(p Vec3, t time.Time) Geodetic {
	alt, _, ll := satellite.ECIToLLA(toSatVector(p), GMST(t))
	lon := math.Mod(ll.Longitude*180/math.Pi, 360)
	if lon > 180 {
		lon -= 360
	} else if lon <= -180 {
		lon += 360
	}
	return Geodetic{
		LatitudeDeg:  ll.Latitude * 180 / math.Pi,
		LongitudeDeg: lon,
		AltitudeKm:   alt,
	}
}

// AltitudeKm returns the altitude over a spherical Earth.
func AltitudeKm(p Vec3) float64 {
	return p.Norm() - EarthRadiusKm
}

func julianDay(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	return jd + float64(t.Nanosecond())/1e9/86400.0
}

func toSatVector(p Vec3) satellite.Vector3 {
	return satellite.Vector3{X: p.X, Y: p.Y, Z: p.Z}
}
