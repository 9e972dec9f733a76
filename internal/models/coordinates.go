package models

// Coordinates represents a geographical point defined by its latitude and longitude in degrees.
type Coordinates struct {
	Latitude  float64 // Latitude of the geographical point, [-90, 90].
	Longitude float64 // Longitude of the geographical point, [-180, 180].
}

// Point is one clusterable item: resolved coordinates plus an opaque identity
// (a name or an address) that is carried through the pipeline untouched.
type Point struct {
	Identity    string
	Coordinates Coordinates
}
