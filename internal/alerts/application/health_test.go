package application

import (
	"context"
	"errors"
	"testing"

	masterdata "sitewatch-cloud/internal/masterdata/domain"
)

func TestListSensorHealth(t *testing.T) {
	f := newScanFixture(t)
	f.sensors.list = []masterdata.Sensor{
		boundSensor("sensor-1", "zone-1"),
		boundSensor("sensor-2", "zone-2"),
	}
	f.health.snapshots["sensor-1"] = freshSnapshot("sensor-1", f.clock.now)
	// sensor-2 has no snapshot, never seen

	list, err := f.service.ListSensorHealth(context.Background(), "tenant-a", "")
	if err != nil {
		t.Fatalf("list health: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(list))
	}
	if list[0].SensorID != "sensor-1" || list[0].Score != 100 {
		t.Fatalf("expected healthy sensor-1 at 100, got %+v", list[0])
	}
	if list[1].SensorID != "sensor-2" || list[1].Score != 55 {
		t.Fatalf("expected never-seen sensor-2 at 55, got %+v", list[1])
	}
	if list[0].BayID != "bay-sensor-1" {
		t.Fatalf("directory context missing: %+v", list[0])
	}
}

func TestListSensorHealth_ZoneScope(t *testing.T) {
	f := newScanFixture(t)
	f.sensors.list = []masterdata.Sensor{
		boundSensor("sensor-1", "zone-1"),
		boundSensor("sensor-2", "zone-2"),
	}

	list, err := f.service.ListSensorHealth(context.Background(), "tenant-a", "zone-2")
	if err != nil {
		t.Fatalf("list health: %v", err)
	}
	if len(list) != 1 || list[0].SensorID != "sensor-2" {
		t.Fatalf("expected only zone-2 sensor, got %+v", list)
	}
}

func TestListSensorHealth_ReadErrors(t *testing.T) {
	f := newScanFixture(t)
	f.sensors.list = []masterdata.Sensor{boundSensor("sensor-1", "zone-1")}
	f.health.err = errors.New("telemetry store down")

	if _, err := f.service.ListSensorHealth(context.Background(), "tenant-a", ""); err == nil {
		t.Fatal("expected telemetry read error to propagate")
	}
}
