package telemetry

import (
	"testing"
	"time"

	"github.com/adshield/fraudguard/internal/config"
	"github.com/adshield/fraudguard/internal/models"
)

func TestPublishDropsOnBackpressure(t *testing.T) {
	s, err := NewKafkaAuditShipper(config.KafkaAuditConfig{
		Enabled:       true,
		Brokers:       []string{"localhost:9092"},
		TopicChecks:   "fraud.checks",
		QueueCapacity: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	drops := 0
	s.SetDropHook(func() { drops++ })

	// Loop not started, so the queue fills and overflow must drop without
	// blocking.
	for i := 0; i < 5; i++ {
		s.Publish(models.CheckRecord{RequestID: "r", IP: "1.2.3.4"})
	}

	if len(s.ch) != 2 {
		t.Errorf("queued = %d, want 2", len(s.ch))
	}
	if drops != 3 {
		t.Errorf("drop hook fired %d times, want 3", drops)
	}
}

func TestPublishDisabledIsNoop(t *testing.T) {
	s, err := NewKafkaAuditShipper(config.KafkaAuditConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	drops := 0
	s.SetDropHook(func() { drops++ })

	s.Publish(models.CheckRecord{RequestID: "r"})
	if drops != 0 {
		t.Errorf("disabled shipper counted a drop")
	}
}

func TestToEventMapsCheckRecord(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := models.CheckRecord{
		RequestID:      "req-1",
		IP:             "7.7.7.7",
		DeviceType:     models.DeviceDesktop,
		Classification: models.ClassWarn,
		Score:          60,
		Flags:          []string{"low_movement"},
		CreatedAt:      now,
	}

	ev := toEvent(rec)
	if ev.Timestamp != now || ev.RequestID != "req-1" || ev.IP != "7.7.7.7" {
		t.Errorf("identity fields mangled: %+v", ev)
	}
	if ev.DeviceType != "desktop" || ev.Classification != "WARN" || ev.Score != 60 {
		t.Errorf("verdict fields mangled: %+v", ev)
	}
}
