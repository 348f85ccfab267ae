package profile

import (
	"context"
	"errors"
	"fmt"
	"os"

	"jobAgent/internal/state"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrNoProfile возвращается, если профиль кандидата еще не импортирован.
var ErrNoProfile = errors.New("профиль кандидата не найден")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Store читает и сохраняет профиль в KV.
type Store struct {
	kv state.KV
}

func NewStore(kv state.KV) *Store {
	return &Store{kv: kv}
}

// Load читает свежую копию профиля. Вызывается в начале каждого прохода.
func (s *Store) Load(ctx context.Context) (*Profile, error) {
	var p Profile
	ok, err := state.GetJSON(ctx, s.kv, state.KeyCandidateProfile, &p)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения профиля: %w", err)
	}
	if !ok {
		return nil, ErrNoProfile
	}
	p.Normalize()
	return &p, nil
}

func (s *Store) Save(ctx context.Context, p *Profile) error {
	if err := Validate(p); err != nil {
		return err
	}
	return state.SetJSON(ctx, s.kv, state.KeyCandidateProfile, p)
}

// Validate проверяет обязательные поля и форматы.
func Validate(p *Profile) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("профиль не прошел валидацию: %w", err)
	}
	return nil
}

// ImportFile читает профиль из YAML-файла.
func ImportFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла профиля: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("ошибка разбора YAML профиля: %w", err)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	p.Normalize()
	return &p, nil
}
