// Package testcmd содержит команды, общие для тестов разных пакетов.
package testcmd

import (
	"errors"

	"github.com/x-research-team/req2cmd/params"
)

// CreateUserCommand строится из параметров через FromMapping.
type CreateUserCommand struct {
	ID   int    `json:"id"`
	Name string `json:"name" validate:"required"`
	Age  int    `json:"age,omitempty"`
}

// FromMapping реализует commandtype.Deserializable.
func (CreateUserCommand) FromMapping(p params.Params) (any, error) {
	id, err := p.IntOr("id", 0)
	if err != nil {
		return nil, err
	}
	name, err := p.String("name")
	if err != nil {
		return nil, err
	}
	age, err := p.IntOr("age", 0)
	if err != nil {
		return nil, err
	}
	return CreateUserCommand{ID: id, Name: name, Age: age}, nil
}

// ToMapping возвращает поля команды в виде параметров.
func (c CreateUserCommand) ToMapping() params.Params {
	out := params.Params{"name": c.Name}
	if c.ID != 0 {
		out["id"] = c.ID
	}
	if c.Age != 0 {
		out["age"] = c.Age
	}
	return out
}

// RenameUserCommand объявляет FromMapping на указателе.
type RenameUserCommand struct {
	ID   int
	Name string
}

// FromMapping реализует commandtype.Deserializable.
func (*RenameUserCommand) FromMapping(p params.Params) (any, error) {
	id, err := p.Int("id")
	if err != nil {
		return nil, err
	}
	name, err := p.String("name")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("имя не может быть пустым")
	}
	return &RenameUserCommand{ID: id, Name: name}, nil
}

// PublishPostCommand не умеет строиться из параметров сам: его заполняют
// по тегам и проверяют валидатором.
type PublishPostCommand struct {
	PostID int    `json:"post_id" validate:"required,gt=0"`
	Title  string `json:"title" validate:"required,min=3"`
}
