package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("url", "ws://localhost:8080/ws", "адрес WebSocket сервера")
	date := flag.String("date", "", "дата загрузки YYYY-MM-DD (пусто - сегодня)")
	timeout := flag.Duration("timeout", 30*time.Second, "сколько ждать итог загрузки")
	flag.Parse()

	// Подключаемся к серверу
	u, err := url.Parse(*addr)
	if err != nil {
		log.Fatalf("Неверный URL: %v", err)
	}

	log.Printf("Подключение к %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Ошибка подключения: %v", err)
	}
	defer conn.Close()

	log.Printf("Успешно подключен")

	if err := conn.WriteJSON(map[string]interface{}{"type": "ingest", "date": *date}); err != nil {
		log.Fatalf("Ошибка отправки запроса загрузки: %v", err)
	}

	deadline := time.Now().Add(*timeout)
	clicked := false
	frames := 0

	// Читаем сообщения, пока не придет выделение после клика
	for {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Ошибка чтения сообщения: %v", err)
			break
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Ошибка разбора сообщения: %v", err)
			continue
		}

		msgType, ok := msg["type"].(string)
		if !ok {
			log.Printf("Сообщение без типа: %v", msg)
			continue
		}

		switch msgType {
		case "info":
			if message, ok := msg["message"].(string); ok {
				log.Printf("INFO: %s", message)
			}

		case "scene_config":
			log.Printf("SCENE_CONFIG: сессия %v, радиус Земли %v", msg["session_id"], msg["central_body_radius"])

		case "scene_reset":
			entities, _ := msg["entities"].([]interface{})
			log.Printf("SCENE_RESET: поколение %v, сущностей %d", msg["generation"], len(entities))
			for _, e := range entities {
				entity, _ := e.(map[string]interface{})
				if row, ok := entity["info"].(map[string]interface{}); ok && entity["kind"] == "asteroid" {
					log.Printf("  %s: %v м, %v км", row["display_name"], row["size_m"], row["distance_km"])
				}
			}

		case "ingest_report":
			log.Printf("INGEST_REPORT: создано %v, пропущено %v", msg["created"], msg["skipped"])
			if !clicked {
				// Клик в центр экрана камерой по умолчанию попадает в Землю
				click := map[string]interface{}{
					"type": "click", "x": 0, "y": 0,
					"camera": map[string]interface{}{
						"position": map[string]float64{"x": 0, "y": 0, "z": 35},
						"target":   map[string]float64{"x": 0, "y": 0, "z": 0},
						"fov":      45, "aspect": 16.0 / 9.0, "near": 0.1, "far": 1000,
					},
				}
				if err := conn.WriteJSON(click); err != nil {
					log.Fatalf("Ошибка отправки клика: %v", err)
				}
				clicked = true
			}

		case "batch_update":
			frames++

		case "selection":
			log.Printf("SELECTION: %v (кадров получено: %d)", msg["entity"], frames)
			log.Printf("Тест завершен")
			return

		case "error":
			log.Printf("ERROR: %v: %v", msg["code"], msg["message"])
			return

		default:
			log.Printf("Сообщение типа %s: %v", msgType, msg)
		}
	}

	log.Printf("Тест завершен")
}
