package world

// Manager хранит живые астероиды по стабильным хэндлам в порядке добавления.
// Не потокобезопасен: все вызовы идут из цикла сессии.
type Manager struct {
	entities   []*SceneEntity
	index      map[Handle]int
	nextHandle Handle
}

// NewManager создает пустой набор сущностей
func NewManager() *Manager {
	return &Manager{
		index:      make(map[Handle]int),
		nextHandle: CentralBodyHandle + 1,
	}
}

// Add присваивает сущности новый хэндл и добавляет ее
func (m *Manager) Add(e *SceneEntity) Handle {
	e.Handle = m.nextHandle
	m.nextHandle++

	m.index[e.Handle] = len(m.entities)
	m.entities = append(m.entities, e)
	return e.Handle
}

// Get возвращает сущность по хэндлу
func (m *Manager) Get(h Handle) (*SceneEntity, bool) {
	i, ok := m.index[h]
	if !ok {
		return nil, false
	}
	return m.entities[i], true
}

// All возвращает сущности в порядке добавления.
// Срез общий с Manager, изменять его нельзя.
func (m *Manager) All() []*SceneEntity {
	return m.entities
}

// Len количество живых сущностей
func (m *Manager) Len() int {
	return len(m.entities)
}

// Clear отсоединяет все сущности. Счетчик хэндлов не сбрасывается.
func (m *Manager) Clear() {
	for i := range m.entities {
		m.entities[i] = nil
	}
	m.entities = m.entities[:0]
	clear(m.index)
}
