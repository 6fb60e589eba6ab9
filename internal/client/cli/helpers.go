package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/iudanet/infirmary/internal/models"
)

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
)

// PayloadInput источники полей записи для add и update
type PayloadInput struct {
	Data string   // Data JSON объект целиком
	File string   // File путь к JSON файлу
	Set  []string // Set поля key=value (строка) или key:=json
}

func (in PayloadInput) empty() bool {
	return in.Data == "" && in.File == "" && len(in.Set) == 0
}

// build собирает JSON payload: сначала --file или --data, затем поверх --set
func (in PayloadInput) build() (json.RawMessage, error) {
	if in.Data != "" && in.File != "" {
		return nil, fmt.Errorf("use either --data or --file, not both")
	}

	raw := []byte("{}")
	switch {
	case in.File != "":
		content, err := os.ReadFile(in.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", in.File, err)
		}
		raw = content
	case in.Data != "":
		raw = []byte(in.Data)
	}

	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, fmt.Errorf("payload must be a JSON object")
	}

	for _, field := range in.Set {
		var err error
		raw, err = setField(raw, field)
		if err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// setField применяет одно присваивание в стиле httpie: key=value или key:=json
func setField(raw []byte, field string) ([]byte, error) {
	if key, value, ok := strings.Cut(field, ":="); ok && key != "" && !strings.Contains(key, "=") {
		if !gjson.Valid(value) {
			return nil, fmt.Errorf("invalid JSON value for %s: %s", key, value)
		}
		return sjson.SetRawBytes(raw, key, []byte(value))
	}

	key, value, ok := strings.Cut(field, "=")
	if !ok || key == "" {
		return nil, fmt.Errorf("invalid field %q, expected key=value or key:=json", field)
	}
	return sjson.SetBytes(raw, key, value)
}

func parseType(arg string) (models.EntityType, error) {
	t, ok := models.ParseEntityType(strings.ToLower(arg))
	if !ok {
		names := make([]string, 0, len(models.EntityTypes))
		for _, et := range models.EntityTypes {
			names = append(names, et.String())
		}
		return "", fmt.Errorf("unknown record type %q, expected one of: %s", arg, strings.Join(names, ", "))
	}
	return t, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// shortID укорачивает UUID для таблиц
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// summary первые поля записи в одну строку для списков
func summary(data json.RawMessage, limit int) string {
	var parts []string
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		if value.IsObject() || value.IsArray() || value.String() == "" {
			return true
		}
		parts = append(parts, key.String()+"="+value.String())
		return len(parts) < limit
	})
	return strings.Join(parts, " ")
}
