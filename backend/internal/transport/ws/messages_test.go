package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"neo-viz/backend/internal/neo"
	"neo-viz/backend/internal/world"
)

func TestGetCurrentServerTime(t *testing.T) {
	// Проверяем, что функция возвращает текущее время в миллисекундах
	now := time.Now().UnixMilli()
	serverTime := GetCurrentServerTime()

	// Допускаем разницу в 100 мс
	if serverTime < now-100 || serverTime > now+100 {
		t.Errorf("GetCurrentServerTime() returned time too far from current time. Got %d, expected around %d", serverTime, now)
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr error
	}{
		{"ping", `{"type":"ping","client_time":1234.5}`, MessageTypePing, nil},
		{"ingest with date", `{"type":"ingest","date":"2024-01-01"}`, MessageTypeIngest, nil},
		{"ingest without date", `{"type":"ingest"}`, MessageTypeIngest, nil},
		{"click", `{"type":"click","x":0.1,"y":-0.2,"camera":{"position":{"x":0,"y":0,"z":35},"target":{"x":0,"y":0,"z":0},"fov":45,"aspect":1.5,"near":0.1,"far":1000}}`, MessageTypeClick, nil},
		{"unknown type", `{"type":"dance"}`, "", ErrUnknownMessageType},
		{"missing type", `{"date":"2024-01-01"}`, "", ErrInvalidMessage},
		{"broken json", `{"type":`, "", ErrInvalidMessage},
		{"wrong field type", `{"type":"click","x":"left"}`, "", ErrInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := messageType(msg); got != tt.want {
				t.Errorf("expected type %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParseMessage_ClickFields(t *testing.T) {
	data := `{"type":"click","x":0.25,"y":-0.5,"camera":{"position":{"x":1,"y":2,"z":3},"target":{"x":0,"y":0,"z":0},"up":{"x":0,"y":0,"z":1},"fov":60,"aspect":2,"near":0.5,"far":500}}`
	msg, err := ParseMessage([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	click, ok := msg.(*ClickMessage)
	if !ok {
		t.Fatalf("expected *ClickMessage, got %T", msg)
	}
	if click.X != 0.25 || click.Y != -0.5 {
		t.Errorf("expected click (0.25, -0.5), got (%v, %v)", click.X, click.Y)
	}

	cam := click.Camera.ToCamera()
	if cam.Position != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("unexpected camera position %v", cam.Position)
	}
	if cam.Up != (mgl64.Vec3{0, 0, 1}) {
		t.Errorf("unexpected camera up %v", cam.Up)
	}
	if cam.FovY != 60 || cam.Aspect != 2 || cam.Near != 0.5 || cam.Far != 500 {
		t.Errorf("unexpected projection params %+v", cam)
	}
}

func TestCameraDTO_DefaultUp(t *testing.T) {
	cam := CameraDTO{Position: Vec3DTO{Z: 35}, Fov: 45, Aspect: 1, Near: 0.1, Far: 100}.ToCamera()
	if cam.Up != (mgl64.Vec3{0, 1, 0}) {
		t.Errorf("expected default up +Y, got %v", cam.Up)
	}
}

func TestClickMessage_Validate(t *testing.T) {
	tests := []struct {
		x, y  float64
		valid bool
	}{
		{0, 0, true},
		{1, -1, true},
		{-0.999, 0.5, true},
		{1.5, 0, false},
		{0, -2, false},
	}
	for _, tt := range tests {
		msg := &ClickMessage{Type: MessageTypeClick, X: tt.x, Y: tt.y}
		err := msg.Validate()
		if tt.valid && err != nil {
			t.Errorf("(%v, %v): unexpected error %v", tt.x, tt.y, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("(%v, %v): expected ErrInvalidMessage, got %v", tt.x, tt.y, err)
		}
	}
}

func TestNewPongMessage(t *testing.T) {
	msg := NewPongMessage(1234.5)

	if msg.Type != MessageTypePong {
		t.Errorf("Expected message type %s, got %s", MessageTypePong, msg.Type)
	}
	if msg.ClientTime != 1234.5 {
		t.Errorf("Expected ClientTime 1234.5, got %v", msg.ClientTime)
	}
	if msg.ServerTime == 0 {
		t.Error("Expected ServerTime to be set, got 0")
	}
}

func TestNewSelectionMessage(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		msg := NewSelectionMessage(nil)
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(data) != `{"type":"selection","entity":null}` {
			t.Errorf("unexpected idle selection payload: %s", data)
		}
	})

	t.Run("selected", func(t *testing.T) {
		info := &world.EntityInfo{
			Handle:         7,
			Kind:           world.KindAsteroid,
			ID:             "3542519",
			Name:           "(2010 PK9)",
			DisplayName:    "[Warning] 2010 PK9",
			Hazardous:      true,
			DiameterMeters: 245.67,
			MissDistanceKm: 7123456.6,
		}
		msg := NewSelectionMessage(info)
		if msg.ID != "7" {
			t.Errorf("expected id 7, got %s", msg.ID)
		}
		if msg.Entity == nil {
			t.Fatal("expected entity row")
		}
		if msg.Entity.SizeMeters != 246 {
			t.Errorf("expected rounded size 246, got %d", msg.Entity.SizeMeters)
		}
		if msg.Entity.DistanceKm != 7123457 {
			t.Errorf("expected rounded distance 7123457, got %d", msg.Entity.DistanceKm)
		}
		if msg.Entity.DisplayName != "[Warning] 2010 PK9" {
			t.Errorf("unexpected display name %q", msg.Entity.DisplayName)
		}
	})
}

func TestNewIngestReportMessage(t *testing.T) {
	report := world.IngestReport{
		Created: 3,
		Skipped: 1,
		Errors:  []error{fmt.Errorf("%w: bad miss distance", world.ErrMalformedRecord)},
	}
	msg := NewIngestReportMessage(4, "2024-01-01", report)

	if msg.Generation != 4 || msg.Created != 3 || msg.Skipped != 1 {
		t.Errorf("unexpected report %+v", msg)
	}
	if len(msg.Errors) != 1 {
		t.Fatalf("expected 1 error string, got %d", len(msg.Errors))
	}
}

func TestNewSceneResetMessage_PairsInfoByHandle(t *testing.T) {
	views := []world.EntityView{
		{Handle: 0, Kind: world.KindCentralBody, Geometry: world.GeometrySphere, Radius: 6, Rotation: mgl64.QuatIdent()},
		{Handle: 3, Kind: world.KindAsteroid, Geometry: world.GeometryDodecahedron, Radius: 0.4, Rotation: mgl64.QuatIdent()},
	}
	// Порядок описаний отличается от порядка видов
	catalog := []*world.EntityInfo{
		{Handle: 3, Kind: world.KindAsteroid, Name: "(A)", DisplayName: "A"},
		{Handle: 0, Kind: world.KindCentralBody, Name: "Earth", DisplayName: "Earth"},
	}

	msg := NewSceneResetMessage(2, "2024-01-01", views, catalog)
	if len(msg.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(msg.Entities))
	}
	if msg.Entities[0].ID != "0" || msg.Entities[0].Info.Name != "Earth" {
		t.Errorf("central body paired wrong: %+v", msg.Entities[0])
	}
	if msg.Entities[1].ID != "3" || msg.Entities[1].Info.DisplayName != "A" {
		t.Errorf("asteroid paired wrong: %+v", msg.Entities[1])
	}
	if msg.Entities[1].Kind != "asteroid" || msg.Entities[1].Geometry != "dodecahedron" {
		t.Errorf("unexpected kind/geometry %s/%s", msg.Entities[1].Kind, msg.Entities[1].Geometry)
	}
	if msg.Entities[1].Rotation.W != 1 {
		t.Errorf("expected identity rotation, got %+v", msg.Entities[1].Rotation)
	}
}

func TestNewBatchUpdateMessage(t *testing.T) {
	views := []world.EntityView{
		{Handle: 0, Position: mgl64.Vec3{0, 0, 0}, Rotation: mgl64.QuatIdent(), Color: world.TintCentralBody},
		{Handle: 5, Position: mgl64.Vec3{1, 2, 3}, Rotation: mgl64.QuatIdent(), Color: world.TintHighlight},
	}
	msg := NewBatchUpdateMessage(9, views)

	if msg.Frame != 9 || len(msg.Objects) != 2 {
		t.Fatalf("unexpected batch %+v", msg)
	}
	obj, ok := msg.Objects["5"]
	if !ok {
		t.Fatal("expected object 5 in batch")
	}
	if obj.Position != (Vec3DTO{1, 2, 3}) || obj.Color != world.TintHighlight {
		t.Errorf("unexpected object state %+v", obj)
	}
}

func TestNewStarField_Deterministic(t *testing.T) {
	a := NewStarField(100, 800, 0.5, 7)
	b := NewStarField(100, 800, 0.5, 7)
	c := NewStarField(100, 800, 0.5, 8)

	if len(a.Positions) != 300 {
		t.Fatalf("expected 300 coordinates, got %d", len(a.Positions))
	}
	same, differs := true, false
	for i := range a.Positions {
		if a.Positions[i] != b.Positions[i] {
			same = false
		}
		if a.Positions[i] != c.Positions[i] {
			differs = true
		}
		if a.Positions[i] < -400 || a.Positions[i] > 400 {
			t.Fatalf("coordinate %v outside cube", a.Positions[i])
		}
	}
	if !same {
		t.Error("same seed produced different star fields")
	}
	if !differs {
		t.Error("different seeds produced identical star fields")
	}
}

func TestDefaultStarField(t *testing.T) {
	stars := DefaultStarField()
	if stars.Count != StarCount || len(stars.Positions) != StarCount*3 {
		t.Errorf("unexpected star count %d (%d coords)", stars.Count, len(stars.Positions))
	}
	if stars.Extent != StarExtent || stars.PointSize != StarPointSize {
		t.Errorf("unexpected star params %v/%v", stars.Extent, stars.PointSize)
	}
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrBusy, ErrorCodeBusy},
		{fmt.Errorf("%w: x", ErrInvalidMessage), ErrorCodeBadMessage},
		{fmt.Errorf("%w: \"01/02\"", neo.ErrBadDate), ErrorCodeBadDate},
		{errors.New("boom"), ErrorCodeInternal},
	}
	for _, tt := range tests {
		if got := errorCode(tt.err); got != tt.want {
			t.Errorf("errorCode(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}

	code, text := classifyFetchError(fmt.Errorf("%w: status 500 api_key=SECRET", neo.ErrUpstream))
	if code != ErrorCodeUpstream {
		t.Errorf("expected upstream code, got %s", code)
	}
	if text != "asteroid feed is unavailable" {
		t.Errorf("upstream details leaked to client: %q", text)
	}
	if code, _ := classifyFetchError(errors.New("dial tcp: refused")); code != ErrorCodeFetch {
		t.Errorf("expected fetch_failed, got %s", code)
	}
}
