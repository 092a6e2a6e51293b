package routing

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"swiftdash/internal/models"
)

const (
	// EarthRadiusKm is Earth's radius for the Haversine calculation.
	EarthRadiusKm = 6371.0

	// DefaultSpeedKmh is the effective delivery speed when no provider data
	// is available.
	DefaultSpeedKmh = 30.0

	// DefaultPolylinePoints is the number of interpolated points in a
	// fallback polyline.
	DefaultPolylinePoints = 20

	// DefaultOffsetAmplitude is the lateral offset, in degrees, applied to
	// fallback polylines so they do not render as a perfectly straight line.
	DefaultOffsetAmplitude = 0.0015

	providerName = "directions"
	fallbackName = "estimate"
)

// Provider is an external directions service. It may fail or time out; the
// estimator recovers with its own approximation.
type Provider interface {
	GetDirections(ctx context.Context, origin, dest models.GeoPoint) (*Directions, error)
}

// Directions is a provider-sourced route.
type Directions struct {
	Coordinates     []models.GeoPoint
	DistanceKm      float64
	DurationMinutes float64
	Steps           []Step
}

// Step is one leg of a provider-sourced route.
type Step struct {
	Instruction     string  `json:"instruction"`
	DistanceKm      float64 `json:"distanceKm"`
	DurationMinutes float64 `json:"durationMinutes"`
}

// Config tunes the estimator; zero values fall back to the defaults above.
type Config struct {
	SpeedKmh        float64
	TrafficFactor   float64
	PolylinePoints  int
	OffsetAmplitude float64
}

// Estimator derives distance, ETA and a polyline between two coordinates.
type Estimator struct {
	provider Provider
	cfg      Config
	log      *logrus.Entry
}

// NewEstimator builds an estimator. provider may be nil, in which case every
// estimate uses the fallback path.
func NewEstimator(provider Provider, cfg Config) *Estimator {
	if cfg.SpeedKmh <= 0 {
		cfg.SpeedKmh = DefaultSpeedKmh
	}
	if cfg.TrafficFactor <= 0 {
		cfg.TrafficFactor = 1.0
	}
	if cfg.PolylinePoints <= 1 {
		cfg.PolylinePoints = DefaultPolylinePoints
	}
	if cfg.OffsetAmplitude <= 0 {
		cfg.OffsetAmplitude = DefaultOffsetAmplitude
	}
	return &Estimator{provider: provider, cfg: cfg, log: logrus.WithField("component", "routing")}
}

// Estimate returns route data for origin -> dest. Provider results supersede
// the fallback; provider failure is recovered internally and only visible as
// Fallback=true on the result.
func (e *Estimator) Estimate(ctx context.Context, origin, dest models.GeoPoint) models.RouteData {
	if e.provider != nil {
		directions, err := e.provider.GetDirections(ctx, origin, dest)
		if err == nil {
			return models.RouteData{
				DistanceKm:  round2(directions.DistanceKm),
				EtaMinutes:  round2(directions.DurationMinutes),
				Polyline:    directions.Coordinates,
				Fallback:    false,
				Provider:    providerName,
				EstimatedAt: time.Now().UTC(),
			}
		}
		e.log.WithError(err).Warn("directions provider unavailable, using fallback estimate")
	}

	distance := HaversineKm(origin, dest)
	return models.RouteData{
		DistanceKm:  round2(distance),
		EtaMinutes:  round2(e.etaMinutes(distance)),
		Polyline:    e.fallbackPolyline(origin, dest),
		Fallback:    true,
		Provider:    fallbackName,
		EstimatedAt: time.Now().UTC(),
	}
}

func (e *Estimator) etaMinutes(distanceKm float64) float64 {
	effective := e.cfg.SpeedKmh / e.cfg.TrafficFactor
	return distanceKm / effective * 60
}

// fallbackPolyline interpolates points linearly between origin and dest with
// a small sinusoidal lateral offset.
func (e *Estimator) fallbackPolyline(origin, dest models.GeoPoint) []models.GeoPoint {
	n := e.cfg.PolylinePoints
	points := make([]models.GeoPoint, 0, n)
	for i := 0; i < n; i++ {
		ratio := float64(i) / float64(n-1)
		offset := e.cfg.OffsetAmplitude * math.Sin(math.Pi*ratio)
		points = append(points, models.GeoPoint{
			Latitude:  origin.Latitude + (dest.Latitude-origin.Latitude)*ratio + offset,
			Longitude: origin.Longitude + (dest.Longitude-origin.Longitude)*ratio,
		})
	}
	return points
}

// HaversineKm calculates the great-circle distance between two points on
// Earth in kilometers using the Haversine formula.
func HaversineKm(a, b models.GeoPoint) float64 {
	const degToRad = math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * degToRad
	dLng := (b.Longitude - a.Longitude) * degToRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Latitude*degToRad)*math.Cos(b.Latitude*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
