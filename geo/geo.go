// Package geo converts cartographic coordinates into the geocentric
// orthogonal frame (GOCS) the viewer renders in. A spherical earth model is
// used; longitude and latitude are degrees, height is meters above the
// sphere.
package geo

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// EarthRadius is the sphere radius, matching the WGS84 equatorial radius.
const EarthRadius = 6378137.0

// CartographicToGocs returns the GOCS position of a cartographic triple.
func CartographicToGocs(lon, lat, height float64) mgl64.Vec3 {
	lamda := mgl64.DegToRad(lon)
	phi := mgl64.DegToRad(lat)
	r := EarthRadius + height
	cosPhi := math.Cos(phi)
	return mgl64.Vec3{
		r * cosPhi * math.Cos(lamda),
		r * cosPhi * math.Sin(lamda),
		r * math.Sin(phi),
	}
}

// IscsToGocs returns the matrix that places a local east-north-up frame at
// the given cartographic point: column 0 is east, column 1 north, column 2
// up, column 3 the GOCS position.
func IscsToGocs(lon, lat, height float64) mgl64.Mat4 {
	lamda := mgl64.DegToRad(lon)
	phi := mgl64.DegToRad(lat)
	sinLamda, cosLamda := math.Sincos(lamda)
	sinPhi, cosPhi := math.Sincos(phi)
	pos := CartographicToGocs(lon, lat, height)

	return mgl64.Mat4{
		// east
		-sinLamda, cosLamda, 0, 0,
		// north
		-sinPhi * cosLamda, -sinPhi * sinLamda, cosPhi, 0,
		// up
		cosPhi * cosLamda, cosPhi * sinLamda, sinPhi, 0,
		pos[0], pos[1], pos[2], 1,
	}
}
