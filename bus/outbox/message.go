package outbox

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// StatusPending означает, что сообщение ожидает обработки.
	StatusPending = "PENDING"
	// StatusProcessed означает, что сообщение было успешно обработано.
	StatusProcessed = "PROCESSED"
)

// Message представляет команду, сохраненную в хранилище outbox.
type Message struct {
	ID          uuid.UUID         // Уникальный идентификатор сообщения
	CommandType string            // Имя типа команды в справочнике
	Payload     []byte            // Сериализованная команда
	Metadata    map[string]string // Метаданные (для трассировки и т.д.)
	Status      string            // Статус (например, PENDING, PROCESSED)
	CreatedAt   time.Time         // Время создания
	ProcessedAt *time.Time        // Время обработки
}

// Receipt — результат отправки команды через outbox: команда принята,
// но еще не выполнена.
type Receipt struct {
	ID          uuid.UUID `json:"id"`
	CommandType string    `json:"command_type"`
	Status      string    `json:"status"`
}

// StatusCode сообщает HTTP-статус ответа для принятой команды.
func (Receipt) StatusCode() int {
	return http.StatusAccepted
}
