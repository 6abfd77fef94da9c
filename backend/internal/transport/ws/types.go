package ws

// Константы для WebSocket сообщений
const (
	// От клиента
	MessageTypePing   = "ping"   // Пинг для измерения задержки
	MessageTypeIngest = "ingest" // Запрос на загрузку астероидов за дату
	MessageTypeClick  = "click"  // Клик по сцене

	// От сервера
	MessageTypePong         = "pong"          // Ответ на пинг
	MessageTypeInfo         = "info"          // Информационное сообщение
	MessageTypeError        = "error"         // Ошибка обработки запроса
	MessageTypeSceneConfig  = "scene_config"  // Настройки сцены и звездное поле
	MessageTypeSceneReset   = "scene_reset"   // Полный набор сущностей после загрузки
	MessageTypeIngestReport = "ingest_report" // Итог загрузки
	MessageTypeBatchUpdate  = "batch_update"  // Позиции сущностей за кадр
	MessageTypeSelection    = "selection"     // Смена выделения
)

// Коды ошибок в сообщении error
const (
	ErrorCodeBadMessage = "bad_message"
	ErrorCodeBadDate    = "bad_date"
	ErrorCodeBadCamera  = "bad_camera"
	ErrorCodeUpstream   = "upstream"
	ErrorCodeFetch      = "fetch_failed"
	ErrorCodeBusy       = "busy"
	ErrorCodeInternal   = "internal"
)

// Envelope общая часть всех входящих сообщений
type Envelope struct {
	Type string `json:"type"`
}

// PingMessage представляет пинг-сообщение
type PingMessage struct {
	Type       string  `json:"type"`
	ClientTime float64 `json:"client_time"`
}

// IngestMessage запрос на загрузку. Пустая дата означает сегодня.
type IngestMessage struct {
	Type string `json:"type"`
	Date string `json:"date,omitempty"`
}

// Vec3DTO вектор в сообщениях
type Vec3DTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// CameraDTO камера клиента в момент клика
type CameraDTO struct {
	Position Vec3DTO  `json:"position"`
	Target   Vec3DTO  `json:"target"`
	Up       *Vec3DTO `json:"up,omitempty"`
	Fov      float64  `json:"fov"`
	Aspect   float64  `json:"aspect"`
	Near     float64  `json:"near"`
	Far      float64  `json:"far"`
}

// ClickMessage клик в нормализованных координатах устройства
type ClickMessage struct {
	Type   string    `json:"type"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Camera CameraDTO `json:"camera"`
}

// PongMessage представляет ответ на пинг
type PongMessage struct {
	Type       string  `json:"type"`
	ClientTime float64 `json:"client_time"`
	ServerTime int64   `json:"server_time"`
}

// InfoMessage представляет информационное сообщение
type InfoMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorMessage сообщение об ошибке. Generation указывается для ошибок загрузки.
type ErrorMessage struct {
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Generation uint64 `json:"generation,omitempty"`
}

// QuatDTO кватернион вращения
type QuatDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// EntityRow строка панели инспекции
type EntityRow struct {
	NeoID          string  `json:"neo_id,omitempty"`
	Name           string  `json:"name"`
	DisplayName    string  `json:"display_name"`
	Hazardous      bool    `json:"hazardous"`
	SizeMeters     int64   `json:"size_m"`
	DistanceKm     int64   `json:"distance_km"`
	ApproachDate   string  `json:"approach_date,omitempty"`
	VelocityKph    float64 `json:"velocity_kph,omitempty"`
	AbsoluteMag    float64 `json:"absolute_magnitude,omitempty"`
	OrbitDistance  float64 `json:"orbit_distance"`
	VisualRadius   float64 `json:"visual_radius"`
	DiameterMeters float64 `json:"diameter_m"`
}

// EntityDTO полное описание сущности для создания на клиенте
type EntityDTO struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	Geometry string     `json:"geometry"`
	Radius   float64    `json:"radius"`
	Color    string     `json:"color"`
	Position Vec3DTO    `json:"position"`
	Rotation QuatDTO    `json:"rotation"`
	Info     *EntityRow `json:"info,omitempty"`
}

// ObjectUpdate состояние сущности в кадре
type ObjectUpdate struct {
	Position Vec3DTO `json:"position"`
	Rotation QuatDTO `json:"rotation"`
	Color    string  `json:"color"`
}

// BatchUpdateMessage пакет обновлений за кадр: id -> состояние
type BatchUpdateMessage struct {
	Type       string                  `json:"type"`
	Frame      uint64                  `json:"frame"`
	ServerTime int64                   `json:"server_time"`
	Objects    map[string]ObjectUpdate `json:"objects"`
}

// SceneResetMessage полный набор сущностей после замены
type SceneResetMessage struct {
	Type       string      `json:"type"`
	Generation uint64      `json:"generation"`
	Date       string      `json:"date,omitempty"`
	Entities   []EntityDTO `json:"entities"`
}

// IngestReportMessage итог загрузки
type IngestReportMessage struct {
	Type       string   `json:"type"`
	Generation uint64   `json:"generation"`
	Date       string   `json:"date"`
	Created    int      `json:"created"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
}

// SelectionMessage смена выделения. Entity == nil означает снятие выделения.
type SelectionMessage struct {
	Type   string     `json:"type"`
	ID     string     `json:"id,omitempty"`
	Entity *EntityRow `json:"entity"`
}

// StarField детерминированное звездное поле для декора
type StarField struct {
	Count     int       `json:"count"`
	Extent    float64   `json:"extent"`
	PointSize float64   `json:"point_size"`
	Positions []float64 `json:"positions"` // x0,y0,z0,x1,y1,z1...
}

// SceneConfigMessage конфигурация сцены, отправляется при подключении
type SceneConfigMessage struct {
	Type              string    `json:"type"`
	SessionID         string    `json:"session_id"`
	CentralBodyRadius float64   `json:"central_body_radius"`
	DistanceDivisor   float64   `json:"distance_divisor"`
	SizeDivisor       float64   `json:"size_divisor"`
	MinRadius         float64   `json:"min_radius"`
	HazardMinRadius   float64   `json:"hazard_min_radius"`
	HighlightColor    string    `json:"highlight_color"`
	DeselectOnMiss    bool      `json:"deselect_on_miss"`
	FrameRate         int       `json:"frame_rate"`
	StreamEvery       int       `json:"stream_every"`
	Stars             StarField `json:"stars"`
}
