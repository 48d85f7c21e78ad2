package geo

import (
	"fmt"
	"math"
)

// GRS80 and WGS84 differ below the millimetre at these scales, so one
// ellipsoid serves both the ETRS89 and WGS84 UTM grids.
const (
	semiMajor  = 6378137.0
	flattening = 1.0 / 298.257222101

	mercatorRadius = 6378137.0

	utmScale        = 0.9996
	utmFalseEasting = 500000.0
	utmFalseNorthS  = 10000000.0
)

func isGeographic(epsg int) bool {
	switch epsg {
	case 4326, 4258, 4230:
		return true
	}
	return false
}

// utmZone resolves the zone and hemisphere for the UTM grids in common use
// across European catalogs. Returns zone 0 for anything else.
func utmZone(epsg int) (zone int, south bool) {
	switch {
	case epsg >= 25828 && epsg <= 25838: // ETRS89 / UTM
		return epsg - 25800, false
	case epsg >= 32601 && epsg <= 32660: // WGS84 / UTM north
		return epsg - 32600, false
	case epsg >= 32701 && epsg <= 32760: // WGS84 / UTM south
		return epsg - 32700, true
	}
	return 0, false
}

func toWGS84(epsg int, x, y float64) (lon, lat float64, err error) {
	if epsg == 3857 {
		lon, lat = inverseMercator(x, y)
		return lon, lat, nil
	}

	if zone, south := utmZone(epsg); zone != 0 {
		lon, lat = inverseUTM(zone, south, x, y)
		return lon, lat, nil
	}

	return 0, 0, fmt.Errorf("unsupported reference system EPSG:%d", epsg)
}

func inverseMercator(x, y float64) (lon, lat float64) {
	lon = x / mercatorRadius * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/mercatorRadius)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

// inverseUTM applies the standard Redfearn inverse transverse Mercator
// series, accurate to well under a metre inside a zone.
func inverseUTM(zone int, south bool, easting, northing float64) (lon, lat float64) {
	e2 := flattening * (2 - flattening)
	ep2 := e2 / (1 - e2)

	if south {
		northing -= utmFalseNorthS
	}

	x := (easting - utmFalseEasting) / utmScale
	m := northing / utmScale

	mu := m / (semiMajor * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	phi1 := mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

	sinPhi := math.Sin(phi1)
	cosPhi := math.Cos(phi1)
	tanPhi := math.Tan(phi1)

	n1 := semiMajor / math.Sqrt(1-e2*sinPhi*sinPhi)
	t1 := tanPhi * tanPhi
	c1 := ep2 * cosPhi * cosPhi
	r1 := semiMajor * (1 - e2) / math.Pow(1-e2*sinPhi*sinPhi, 1.5)
	d := x / n1

	latRad := phi1 - (n1*tanPhi/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)

	lon0 := float64(zone*6-183) * math.Pi / 180
	lonRad := lon0 + (d-
		(1+2*t1+c1)*math.Pow(d, 3)/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cosPhi

	return lonRad * 180 / math.Pi, latRad * 180 / math.Pi
}
