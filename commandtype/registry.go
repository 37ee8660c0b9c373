package commandtype

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-reflect"
)

// Registry — потокобезопасный справочник дескрипторов по имени.
// Используется там, где тип команды известен только по имени,
// например при повторной отправке команд из outbox.
type Registry struct {
	byName map[string]Descriptor
	// byType хранит первое имя, под которым зарегистрирован тип.
	byType map[reflect.Type]string
	mu     sync.RWMutex
}

// NewRegistry создает справочник и регистрирует переданные дескрипторы.
func NewRegistry(ds ...Descriptor) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Descriptor),
		byType: make(map[reflect.Type]string),
	}
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register добавляет дескриптор. Повторная регистрация того же типа под тем же
// именем допустима; другой тип под занятым именем — ошибка.
func (r *Registry) Register(d Descriptor) error {
	if d.IsZero() {
		return fmt.Errorf("нельзя зарегистрировать пустой дескриптор")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[d.Name()]; ok {
		if existing.Type() == d.Type() {
			return nil
		}
		return fmt.Errorf("имя команды '%s' уже занято типом '%s'", d.Name(), existing.Type())
	}
	r.byName[d.Name()] = d
	if _, ok := r.byType[d.Type()]; !ok {
		r.byType[d.Type()] = d.Name()
	}
	return nil
}

// Lookup возвращает дескриптор по имени.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byName[name]
	return d, ok
}

// Known сообщает, зарегистрирован ли тип дескриптора под каким-либо именем.
func (r *Registry) Known(d Descriptor) bool {
	_, ok := r.NameOf(d)
	return ok
}

// NameOf возвращает имя дескриптора, если оно зарегистрировано для его типа,
// иначе первое имя, под которым зарегистрирован тип.
func (r *Registry) NameOf(d Descriptor) (string, bool) {
	if d.IsZero() {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if existing, ok := r.byName[d.Name()]; ok && existing.Type() == d.Type() {
		return d.Name(), true
	}
	name, ok := r.byType[d.Type()]
	return name, ok
}

// Names возвращает отсортированный список имен.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
