package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Структуры сообщений клиента
type PingMessage struct {
	Type       string `json:"type"`
	ClientTime int64  `json:"client_time"`
}

type IngestMessage struct {
	Type string `json:"type"`
	Date string `json:"date,omitempty"`
}

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Camera struct {
	Position Vec3    `json:"position"`
	Target   Vec3    `json:"target"`
	Fov      float64 `json:"fov"`
	Aspect   float64 `json:"aspect"`
	Near     float64 `json:"near"`
	Far      float64 `json:"far"`
}

type ClickMessage struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Camera Camera  `json:"camera"`
}

// Bot подключается к серверу, запрашивает загрузку и кликает по сцене
type Bot struct {
	ID          string
	ServerURL   string
	Date        string
	Pattern     string
	Duration    time.Duration
	ClickRate   time.Duration
	Conn        *websocket.Conn
	Stats       BotStats
	writeMu     sync.Mutex // Мьютекс для синхронизации записи в WebSocket
	step        int
	rng         *rand.Rand
	ingestReady atomic.Bool
}

// BotStats содержит статистику работы бота
type BotStats struct {
	ClicksSent    atomic.Int64
	Selections    atomic.Int64
	Deselections  atomic.Int64
	Frames        atomic.Int64
	IngestReports atomic.Int64
	Errors        atomic.Int64
	StartTime     time.Time
}

// NewBot создает нового бота
func NewBot(id, serverURL, date, pattern string, duration, clickRate time.Duration, seed uint64) *Bot {
	return &Bot{
		ID:        id,
		ServerURL: serverURL,
		Date:      date,
		Pattern:   pattern,
		Duration:  duration,
		ClickRate: clickRate,
		rng:       rand.New(rand.NewPCG(seed, seed+1)),
		Stats:     BotStats{StartTime: time.Now()},
	}
}

// Connect подключается к серверу
func (b *Bot) Connect() error {
	u, err := url.Parse(b.ServerURL)
	if err != nil {
		return fmt.Errorf("неверный URL: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("ошибка подключения: %w", err)
	}
	b.Conn = conn

	log.Printf("[Bot %s] Успешно подключен к %s", b.ID, u.String())
	return nil
}

func (b *Bot) write(v interface{}) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.Conn.WriteJSON(v)
}

// nextClick точка клика в NDC по паттерну
func (b *Bot) nextClick() (float64, float64) {
	b.step++
	switch b.Pattern {
	case "circle":
		angle := float64(b.step) * math.Pi / 16
		return 0.5 * math.Cos(angle), 0.5 * math.Sin(angle)
	case "center":
		return 0, 0
	default: // "random"
		return b.rng.Float64()*2 - 1, b.rng.Float64()*2 - 1
	}
}

func (b *Bot) sendClick() error {
	x, y := b.nextClick()
	err := b.write(ClickMessage{
		Type: "click", X: x, Y: y,
		Camera: Camera{
			Position: Vec3{Z: 35},
			Fov:      45,
			Aspect:   16.0 / 9.0,
			Near:     0.1,
			Far:      1000,
		},
	})
	if err == nil {
		b.Stats.ClicksSent.Add(1)
	}
	return err
}

// handleMessage обрабатывает входящие сообщения
func (b *Bot) handleMessage(data []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[Bot %s] Ошибка разбора сообщения: %v", b.ID, err)
		return
	}

	switch msg["type"] {
	case "batch_update":
		b.Stats.Frames.Add(1)

	case "ingest_report":
		b.Stats.IngestReports.Add(1)
		b.ingestReady.Store(true)
		log.Printf("[Bot %s] Загрузка: создано %v, пропущено %v", b.ID, msg["created"], msg["skipped"])

	case "selection":
		if msg["entity"] == nil {
			b.Stats.Deselections.Add(1)
		} else {
			b.Stats.Selections.Add(1)
		}

	case "error":
		b.Stats.Errors.Add(1)
		log.Printf("[Bot %s] Ошибка сервера: %v: %v", b.ID, msg["code"], msg["message"])

	case "info":
		log.Printf("[Bot %s] Информация: %v", b.ID, msg["message"])
	}
}

// Run запускает бота до истечения Duration или отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Connect(); err != nil {
		return err
	}
	defer b.Conn.Close()

	ctx, cancel := context.WithTimeout(ctx, b.Duration)
	defer cancel()

	// Чтение закрывается вместе с соединением
	go func() {
		<-ctx.Done()
		b.Conn.Close()
	}()
	go func() {
		for {
			_, data, err := b.Conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					b.Stats.Errors.Add(1)
					log.Printf("[Bot %s] Ошибка чтения сообщения: %v", b.ID, err)
					cancel()
				}
				return
			}
			b.handleMessage(data)
		}
	}()

	if err := b.write(IngestMessage{Type: "ingest", Date: b.Date}); err != nil {
		return fmt.Errorf("запрос загрузки: %w", err)
	}

	clickTicker := time.NewTicker(b.ClickRate)
	defer clickTicker.Stop()
	pingTicker := time.NewTicker(5 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Bot %s] Завершение работы", b.ID)
			return nil
		case <-pingTicker.C:
			if err := b.write(PingMessage{Type: "ping", ClientTime: time.Now().UnixMilli()}); err != nil {
				b.Stats.Errors.Add(1)
			}
		case <-clickTicker.C:
			if !b.ingestReady.Load() {
				continue
			}
			if err := b.sendClick(); err != nil {
				b.Stats.Errors.Add(1)
				log.Printf("[Bot %s] Ошибка отправки клика: %v", b.ID, err)
			}
		}
	}
}

// PrintStats выводит статистику бота
func (b *Bot) PrintStats() {
	duration := time.Since(b.Stats.StartTime)
	log.Printf("[Bot %s] Статистика:", b.ID)
	log.Printf("  Время работы: %v", duration)
	log.Printf("  Загрузок: %d", b.Stats.IngestReports.Load())
	log.Printf("  Кликов: %d (выделений %d, снятий %d)", b.Stats.ClicksSent.Load(),
		b.Stats.Selections.Load(), b.Stats.Deselections.Load())
	log.Printf("  Кадров: %d (%.1f/сек)", b.Stats.Frames.Load(), float64(b.Stats.Frames.Load())/duration.Seconds())
	log.Printf("  Ошибок: %d", b.Stats.Errors.Load())
}

func main() {
	// Флаги командной строки
	var (
		serverURL = flag.String("url", "ws://localhost:8080/ws", "URL WebSocket сервера")
		count     = flag.Int("bots", 1, "Количество ботов")
		date      = flag.String("date", "", "Дата загрузки YYYY-MM-DD (пусто - сегодня)")
		pattern   = flag.String("pattern", "random", "Паттерн кликов (random, circle, center)")
		duration  = flag.Duration("duration", 30*time.Second, "Длительность работы бота")
		clickRate = flag.Duration("rate", 500*time.Millisecond, "Частота кликов")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bots := make([]*Bot, *count)
	g, gctx := errgroup.WithContext(ctx)
	for i := range bots {
		bot := NewBot(fmt.Sprintf("bot%d", i+1), *serverURL, *date, *pattern, *duration, *clickRate, uint64(i+1))
		bots[i] = bot
		g.Go(func() error {
			return bot.Run(gctx)
		})
	}

	err := g.Wait()
	for _, bot := range bots {
		bot.PrintStats()
	}
	if err != nil {
		log.Printf("Ошибка: %v", err)
		os.Exit(1)
	}
}
