package baro

import (
	"strconv"
)

// SensorIdentity is the display identity of one sensor.
type SensorIdentity struct {
	SensorID int64
	ModuleID string
	Label    string
}

// ModuleConflict records a sensor seen under more than one module. The first
// module stays authoritative; conflicts are only reported.
type ModuleConflict struct {
	SensorID int64
	Kept     string
	Seen     string
}

// Label returns the display label "<module>-<sensor>".
func Label(moduleID string, sensorID int64) string {
	return moduleID + "-" + strconv.FormatInt(sensorID, 10)
}

// Catalog maps sensor ids to their display identities in first-seen order.
type Catalog struct {
	order     []int64
	sensors   map[int64]SensorIdentity
	conflicts []ModuleConflict
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{sensors: make(map[int64]SensorIdentity)}
}

// ResolveCatalog builds a catalog from already filtered readings.
func ResolveCatalog(readings []Reading) *Catalog {
	c := NewCatalog()
	for _, r := range readings {
		c.Observe(r)
	}
	return c
}

// Observe registers the sensor of r. The module of the first reading seen for
// a sensor wins.
func (c *Catalog) Observe(r Reading) {
	id, ok := c.sensors[r.SensorID]
	if !ok {
		c.order = append(c.order, r.SensorID)
		c.sensors[r.SensorID] = SensorIdentity{
			SensorID: r.SensorID,
			ModuleID: r.ModuleID,
			Label:    Label(r.ModuleID, r.SensorID),
		}
		return
	}
	if id.ModuleID != r.ModuleID && !c.hasConflict(r.SensorID, r.ModuleID) {
		c.conflicts = append(c.conflicts, ModuleConflict{SensorID: r.SensorID, Kept: id.ModuleID, Seen: r.ModuleID})
	}
}

func (c *Catalog) hasConflict(sensorID int64, module string) bool {
	for _, cf := range c.conflicts {
		if cf.SensorID == sensorID && cf.Seen == module {
			return true
		}
	}
	return false
}

// Lookup returns the identity of a sensor.
func (c *Catalog) Lookup(sensorID int64) (SensorIdentity, bool) {
	id, ok := c.sensors[sensorID]
	return id, ok
}

// Sensors returns all identities in the order they were first observed.
func (c *Catalog) Sensors() []SensorIdentity {
	out := make([]SensorIdentity, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.sensors[id])
	}
	return out
}

// Labels maps sensor ids to display labels.
func (c *Catalog) Labels() map[int64]string {
	out := make(map[int64]string, len(c.sensors))
	for id, s := range c.sensors {
		out[id] = s.Label
	}
	return out
}

// Conflicts returns sensors observed with more than one module id.
func (c *Catalog) Conflicts() []ModuleConflict {
	return c.conflicts
}

// Len returns the number of distinct sensors.
func (c *Catalog) Len() int {
	return len(c.order)
}
