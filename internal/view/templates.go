package view

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/paroquia-cms/paroquia-cms/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	loc       *time.Location
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	GeneratedAt time.Time
	Data        any
}

// NewEngine parses the embedded templates. Timestamps render in loc; nil
// means UTC.
func NewEngine(loc *time.Location) (*Engine, error) {
	if loc == nil {
		loc = time.UTC
	}
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.In(loc).Format("02/01/2006 15:04")
		},
		"columnLabel": columnLabel,
		"cell":        func(v any) string { return cell(v, loc) },
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl, loc: loc}, nil
}

// Execute renders a named template into memory.
func (e *Engine) Execute(name string, data TemplateData) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func columnLabel(name string) string {
	return cases.Title(language.BrazilianPortuguese).String(strings.ReplaceAll(name, "_", " "))
}

// cell renders one record value for print. Calendar dates become DD/MM/YYYY.
func cell(v any, loc *time.Location) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		if t, err := time.Parse("2006-01-02", val); err == nil {
			return t.Format("02/01/2006")
		}
		return val
	case time.Time:
		return val.In(loc).Format("02/01/2006 15:04")
	case bool:
		if val {
			return "Sim"
		}
		return "Não"
	}
	return fmt.Sprint(v)
}
