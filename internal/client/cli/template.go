package cli

import (
	"text/template"

	"github.com/tidwall/gjson"
)

// recordView данные для recordTemplate
type recordView struct {
	Pending   string
	Type      string
	ID        string
	UpdatedAt string
	Fields    []fieldView
	Version   int64
}

type fieldView struct {
	Name  string
	Value string
}

var recordTemplate = template.Must(template.New("record").Parse(`
=== {{.Type}} {{.ID}} ===

Version:  {{if .Version}}{{.Version}}{{else}}not on server yet{{end}}
Updated:  {{.UpdatedAt}}
{{- if .Pending}}
Pending:  {{.Pending}}
{{- end}}

{{range .Fields}}{{printf "%-16s" .Name}} {{.Value}}
{{end}}`))

// fieldsOf разворачивает JSON в плоский список полей, вложенные через точку
func fieldsOf(data []byte) []fieldView {
	var fields []fieldView
	var walk func(prefix string, r gjson.Result)
	walk = func(prefix string, r gjson.Result) {
		r.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if prefix != "" {
				name = prefix + "." + name
			}
			if value.IsObject() {
				walk(name, value)
				return true
			}
			fields = append(fields, fieldView{Name: name, Value: value.String()})
			return true
		})
	}
	walk("", gjson.ParseBytes(data))
	return fields
}
