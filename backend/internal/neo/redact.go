package neo

import "strings"

// redact убирает ключ API из текста ошибки
func redact(msg, key string) string {
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, key, "***")
}
