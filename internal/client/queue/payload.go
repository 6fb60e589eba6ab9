package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// pathEscaper экранирует спецсимволы синтаксиса путей gjson/sjson в именах полей
var pathEscaper = strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)

// Overlay накладывает поля верхнего уровня patch на base.
// Вложенные объекты заменяются целиком.
func Overlay(base, patch json.RawMessage) (json.RawMessage, error) {
	if len(base) == 0 || !gjson.ValidBytes(base) {
		base = json.RawMessage(`{}`)
	}
	if len(patch) == 0 {
		return cloneRaw(base), nil
	}
	if !gjson.ValidBytes(patch) {
		return nil, fmt.Errorf("patch is not valid JSON")
	}

	parsed := gjson.ParseBytes(patch)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("patch must be a JSON object")
	}

	out := cloneRaw(base)
	var err error
	parsed.ForEach(func(key, value gjson.Result) bool {
		out, err = sjson.SetRawBytes(out, pathEscaper.Replace(key.String()), []byte(value.Raw))
		return err == nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to overlay field: %w", err)
	}

	return out, nil
}

// RemapRefs заменяет ссылки вида "<name>_id": oldID на newID в полях верхнего уровня.
// Возвращает исходный payload и false, если замен не было.
func RemapRefs(payload json.RawMessage, oldID, newID string) (json.RawMessage, bool) {
	if len(payload) == 0 || oldID == "" || !gjson.ValidBytes(payload) {
		return payload, false
	}

	var fields []string
	gjson.ParseBytes(payload).ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if strings.HasSuffix(name, "_id") && value.Type == gjson.String && value.Str == oldID {
			fields = append(fields, name)
		}
		return true
	})
	if len(fields) == 0 {
		return payload, false
	}

	out := cloneRaw(payload)
	for _, name := range fields {
		updated, err := sjson.SetBytes(out, pathEscaper.Replace(name), newID)
		if err != nil {
			continue
		}
		out = updated
	}
	return out, true
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
