package baro

import (
	"testing"
	"time"
)

func TestCatalog_FirstSeenOrder(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	readings := []Reading{
		{Timestamp: base, SensorID: 3, ModuleID: "B", Value: 1013.1},
		{Timestamp: base, SensorID: 1, ModuleID: "A", Value: 1013.2},
		{Timestamp: base.Add(time.Second), SensorID: 3, ModuleID: "B", Value: 1013.3},
		{Timestamp: base, SensorID: 2, ModuleID: "A", Value: 1013.4},
	}

	c := ResolveCatalog(readings)
	if c.Len() != 3 {
		t.Fatalf("Expected 3 sensors, got %d", c.Len())
	}

	expected := []string{"B-3", "A-1", "A-2"}
	for i, s := range c.Sensors() {
		if s.Label != expected[i] {
			t.Errorf("Sensor %d: expected label %s, got %s", i, expected[i], s.Label)
		}
	}

	labels := c.Labels()
	if labels[1] != "A-1" || labels[2] != "A-2" || labels[3] != "B-3" {
		t.Errorf("Unexpected labels map: %v", labels)
	}
}

func TestCatalog_FirstModuleIsAuthoritative(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c := ResolveCatalog([]Reading{
		{Timestamp: base, SensorID: 7, ModuleID: "north"},
		{Timestamp: base.Add(time.Second), SensorID: 7, ModuleID: "south"},
		{Timestamp: base.Add(2 * time.Second), SensorID: 7, ModuleID: "south"},
	})

	id, ok := c.Lookup(7)
	if !ok {
		t.Fatal("Expected sensor 7 to be present")
	}
	if id.Label != "north-7" {
		t.Errorf("Expected label north-7, got %s", id.Label)
	}

	conflicts := c.Conflicts()
	if len(conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0].Kept != "north" || conflicts[0].Seen != "south" {
		t.Errorf("Unexpected conflict: %+v", conflicts[0])
	}
}

func TestCatalog_Empty(t *testing.T) {
	c := ResolveCatalog(nil)
	if c.Len() != 0 {
		t.Errorf("Expected empty catalog, got %d sensors", c.Len())
	}
	if _, ok := c.Lookup(1); ok {
		t.Error("Lookup on empty catalog should fail")
	}
	if len(c.Sensors()) != 0 {
		t.Error("Sensors on empty catalog should be empty")
	}
}
