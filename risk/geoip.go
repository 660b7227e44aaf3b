package risk

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Location is the geographic result of an IP lookup
type Location struct {
	Country   string
	Latitude  float64
	Longitude float64
	Known     bool
}

// GeoResolver resolves an IP address to a coarse location. Lookup failures
// return a zero Location rather than an error so that a missing GeoIP
// database degrades geo signals instead of failing assessments.
type GeoResolver interface {
	Lookup(ipAddress string) Location
}

// GeoIP2Resolver resolves locations from a MaxMind City database
type GeoIP2Resolver struct {
	reader *geoip2.Reader
}

// NewGeoIP2Resolver opens the MaxMind database at the given path
func NewGeoIP2Resolver(path string) (*GeoIP2Resolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &GeoIP2Resolver{reader: reader}, nil
}

// Lookup resolves the IP's country and coordinates
func (r *GeoIP2Resolver) Lookup(ipAddress string) Location {
	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return Location{}
	}
	record, err := r.reader.City(ip)
	if err != nil || record == nil {
		return Location{}
	}
	return Location{
		Country:   record.Country.IsoCode,
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
		Known:     record.Country.IsoCode != "",
	}
}

// Close releases the underlying database
func (r *GeoIP2Resolver) Close() error {
	return r.reader.Close()
}

// NoopResolver returns unknown locations. Used when no GeoIP database is
// configured; geo-derived signals contribute nothing.
type NoopResolver struct{}

// Lookup always reports an unknown location
func (NoopResolver) Lookup(string) Location { return Location{} }

// StaticResolver maps fixed IPs to locations for tests
type StaticResolver struct {
	Locations map[string]Location
}

// Lookup returns the configured location for the IP
func (s StaticResolver) Lookup(ipAddress string) Location {
	return s.Locations[ipAddress]
}
