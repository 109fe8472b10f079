package common

// All units are metric:
// - Speed is in m/s
// - Distance is in meters
// - Acceleration is in m/s^2
// - Angles are in degrees unless suffixed otherwise

// GravityStandard is standard gravity.
const GravityStandard = 9.80665

// EarthRadius is the spherical-earth approximation radius
// used for all great-circle math.
const EarthRadius = 6371000.0

const SpeedOfWalkingSlow = 0.556 // or 2 km/h
const SpeedOfWalkingMean = 1.2   // or 4.3 km/h
const SpeedOfCyclingMean = 5.36  // or 19.3 km/h
const SpeedOfCityRiding = 13.9   // or 50 km/h
const SpeedOfHighwayRiding = 32  // or 120 km/h

// LeanAngleMax is the greatest lean we ever report.
// MotoGP elbows hit pavement around 64; nothing street-plausible exceeds it.
const LeanAngleMax = 60.0
