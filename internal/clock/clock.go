package clock

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock выдает монотонно возрастающие метки времени для локальных записей.
// Каждая следующая метка строго больше предыдущей и строго больше любой
// метки, полученной от сервера через Observe. Это гарантирует, что локальная
// правка, сделанная после pull, побеждает в last-write-wins.
type Clock struct {
	last   time.Time        // последняя выданная или наблюдаемая метка
	now    func() time.Time // источник физического времени
	nodeID string           // уникальный идентификатор узла
	mu     sync.Mutex       // мьютекс для потокобезопасности
}

// New создает часы с уникальным идентификатором узла (UUID)
func New() *Clock {
	return &Clock{
		now:    time.Now,
		nodeID: uuid.New().String(),
	}
}

// NewWithSource создает часы с заданным источником времени и идентификатором узла.
// Используется для тестирования.
func NewWithSource(nodeID string, now func() time.Time) *Clock {
	return &Clock{
		now:    now,
		nodeID: nodeID,
	}
}

// Now возвращает новую метку: max(физическое время, последняя метка + 1ns)
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}

// Observe учитывает удаленную метку времени, чтобы следующие локальные
// метки были строго позже нее.
func (c *Clock) Observe(remote time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remote.After(c.last) {
		c.last = remote.UTC()
	}
}

// Last возвращает последнюю выданную или наблюдаемую метку без ее изменения
func (c *Clock) Last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.last
}

// NodeID возвращает уникальный идентификатор узла
func (c *Clock) NodeID() string {
	return c.nodeID
}
