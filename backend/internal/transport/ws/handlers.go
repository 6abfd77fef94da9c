package ws

// handlePing отвечает на пинг с серверным временем
func (s *WSServer) handlePing(session *Session, message interface{}) error {
	ping, ok := message.(*PingMessage)
	if !ok {
		return ErrInvalidMessage
	}
	session.send(NewPongMessage(ping.ClientTime))
	return nil
}

// handleIngest запускает загрузку астероидов за дату.
// Результат придет отдельными сообщениями scene_reset и ingest_report.
func (s *WSServer) handleIngest(session *Session, message interface{}) error {
	msg, ok := message.(*IngestMessage)
	if !ok {
		return ErrInvalidMessage
	}

	generation, err := session.RequestIngest(msg.Date)
	if err != nil {
		return err
	}
	s.logger.Printf("[WSServer] Сессия %s: загрузка %d за %q", session.ID(), generation, msg.Date)
	return nil
}

// handleClick передает клик в цикл сессии
func (s *WSServer) handleClick(session *Session, message interface{}) error {
	msg, ok := message.(*ClickMessage)
	if !ok {
		return ErrInvalidMessage
	}
	return session.Click(msg)
}
