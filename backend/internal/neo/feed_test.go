package neo

import (
	"os"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/feed.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return raw
}

func TestSanitizeFeed_RemovesLinks(t *testing.T) {
	out, err := SanitizeFeed(loadFixture(t))
	if err != nil {
		t.Fatalf("SanitizeFeed: %v", err)
	}

	if strings.Contains(string(out), "SECRET_KEY") {
		t.Fatalf("sanitized feed still contains the API key: %s", out)
	}
	if strings.Contains(string(out), `"links"`) {
		t.Error("sanitized feed still contains links objects")
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("sanitized feed is not valid JSON: %v", err)
	}
	if doc["element_count"] == nil {
		t.Error("element_count must be preserved")
	}
	// Большие числа не теряют точность
	if !strings.Contains(string(out), "1704103920000") {
		t.Error("epoch millis changed during sanitizing")
	}
}

func TestSanitizeFeed_InvalidJSON(t *testing.T) {
	if _, err := SanitizeFeed([]byte("<html>")); err == nil {
		t.Error("Expected error for non-JSON body")
	}
}

func TestFeed_ToRecords(t *testing.T) {
	feed, err := DecodeFeed(loadFixture(t))
	if err != nil {
		t.Fatalf("DecodeFeed: %v", err)
	}

	records := feed.ToRecords()
	if len(records) != 3 {
		t.Fatalf("records = %d, expected 3", len(records))
	}

	// Даты по возрастанию: сначала 2023-12-31
	if records[0].ID != "54000001" {
		t.Errorf("first record = %s, expected 54000001", records[0].ID)
	}
	if len(records[0].CloseApproaches) != 0 {
		t.Error("empty close approach list must stay empty")
	}

	pha := records[1]
	if pha.ID != "2474532" || !pha.Hazardous {
		t.Errorf("second record = %+v", pha)
	}
	if pha.DiameterMaxMeters != 588.8 || pha.DiameterMinMeters != 263.3 {
		t.Errorf("diameters = %v/%v", pha.DiameterMinMeters, pha.DiameterMaxMeters)
	}
	if got := pha.CloseApproaches[0].MissDistanceKm; got != "6731928.1" {
		t.Errorf("miss distance = %q", got)
	}
	if got := pha.CloseApproaches[0].RelativeVelocityKph; got != "45000.5" {
		t.Errorf("velocity = %q", got)
	}
}

func TestFeed_ToRecordsNil(t *testing.T) {
	var feed *Feed
	if got := feed.ToRecords(); got != nil {
		t.Errorf("nil feed records = %v", got)
	}
}
