// Package config reads configuration overrides from the process environment.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Env exposes environment-sourced settings addressed by dotted keys.
type Env interface {
	IsSet(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetList(key string) []string
}

type viperEnv struct {
	v *viper.Viper
}

// NewEnv creates an Env. Every dotted key is reachable through its upper-cased,
// underscore-joined name (gateway.entity_id -> GATEWAY_ENTITY_ID). aliases binds
// additional variable names to a key; the first name that is set wins.
func NewEnv(aliases map[string][]string) (Env, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range aliases {
		input := append([]string{key}, names...)
		if err := v.BindEnv(input...); err != nil {
			return nil, err
		}
	}

	return &viperEnv{v: v}, nil
}

func (e *viperEnv) IsSet(key string) bool {
	return e.v.IsSet(key) && e.v.GetString(key) != ""
}

func (e *viperEnv) GetString(key string) string {
	return strings.TrimSpace(e.v.GetString(key))
}

func (e *viperEnv) GetInt(key string) int {
	return e.v.GetInt(key)
}

func (e *viperEnv) GetBool(key string) bool {
	return e.v.GetBool(key)
}

func (e *viperEnv) GetDuration(key string) time.Duration {
	return e.v.GetDuration(key)
}

// GetList splits a comma or whitespace separated value.
func (e *viperEnv) GetList(key string) []string {
	raw := e.v.GetString(key)
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
